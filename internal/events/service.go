package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventdesk/internal/backend"
	"eventdesk/internal/form"
	"eventdesk/internal/ics"
	appLog "eventdesk/internal/log"
	"eventdesk/internal/metrics"
	"eventdesk/internal/model"
	"eventdesk/internal/store"
)

// ErrReadOnly is returned for writes aimed at room booking feed entries;
// those are owned by the feed's calendar.
var ErrReadOnly = errors.New("event comes from a room booking feed and is read-only")

// Backend is the REST collaborator that owns events.
type Backend interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, in backend.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id model.EventID, in backend.EventInput) (model.Event, error)
	DeleteEvent(ctx context.Context, id model.EventID) error
}

// SnapshotCache keeps the last good backend snapshot across restarts.
type SnapshotCache interface {
	Save(ctx context.Context, events []model.Event) error
	Load(ctx context.Context) ([]model.Event, bool, error)
}

// FeedSource yields bookings from external room calendars.
type FeedSource interface {
	Load(ctx context.Context) ([]model.Event, error)
}

// Draft is the content of a create or update request.
type Draft struct {
	Title        string
	Kind         model.Kind
	Start        time.Time
	End          time.Time
	LocationMode model.LocationMode
	Room         model.Room
	Sector       string
}

func (d Draft) fields() form.Fields {
	return form.Fields{LocationMode: d.LocationMode, Room: d.Room, Start: d.Start, End: d.End}
}

func (d Draft) input() backend.EventInput {
	return backend.NewEventInput(d.Title, d.Kind, model.Window{Start: d.Start, End: d.End}, d.LocationMode, d.Room, d.Sector)
}

// RefreshResult describes how a refresh went. Err is informational: the
// store always holds the best snapshot available.
type RefreshResult struct {
	Count     int
	FromCache bool
	Err       error
	FeedErr   error
}

// Service mirrors backend events into the store and guards writes with the
// room gate.
type Service struct {
	backend Backend
	store   *store.Store
	cache   SnapshotCache
	feeds   FeedSource

	refreshMu sync.Mutex
}

type Option func(*Service)

// WithCache enables the snapshot fallback used when the backend is down.
func WithCache(c SnapshotCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithFeeds merges room booking feeds into every refresh.
func WithFeeds(f FeedSource) Option {
	return func(s *Service) { s.feeds = f }
}

func NewService(b Backend, st *store.Store, opts ...Option) *Service {
	s := &Service{backend: b, store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the store the service writes through to.
func (s *Service) Store() *store.Store {
	return s.store
}

// Refresh refetches everything. Concurrent calls are serialized.
func (s *Service) Refresh(ctx context.Context) RefreshResult {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	var feedEvents []model.Event
	var feedErr error
	if s.feeds != nil {
		feedEvents, feedErr = s.feeds.Load(ctx)
		if feedErr != nil {
			appLog.Warn("room feeds partially unavailable", "reason", feedErr.Error())
		}
	}

	fetched, err := s.backend.ListEvents(ctx)
	if err == nil {
		s.store.Replace(merge(fetched, feedEvents))
		if s.cache != nil {
			if cerr := s.cache.Save(ctx, fetched); cerr != nil {
				appLog.Error("snapshot cache save failed", cerr)
			}
		}
		n := s.store.Len()
		metrics.TrackRefresh("backend", n)
		appLog.Info("events refreshed", "count", n, "feed_bookings", len(feedEvents))
		return RefreshResult{Count: n, FeedErr: feedErr}
	}

	appLog.Error("backend refresh failed", err)
	if s.cache != nil {
		cached, ok, cerr := s.cache.Load(ctx)
		switch {
		case cerr != nil:
			appLog.Error("snapshot cache load failed", cerr)
		case ok:
			s.store.Replace(merge(cached, feedEvents))
			n := s.store.Len()
			metrics.TrackRefresh("cache", n)
			appLog.Warn("serving cached snapshot", "count", n)
			return RefreshResult{Count: n, FromCache: true, Err: err, FeedErr: feedErr}
		}
	}

	n := s.store.Len()
	metrics.TrackRefresh("stale", n)
	return RefreshResult{Count: n, Err: err, FeedErr: feedErr}
}

func merge(backendEvents, feedEvents []model.Event) []model.Event {
	out := make([]model.Event, 0, len(backendEvents)+len(feedEvents))
	out = append(out, backendEvents...)
	return append(out, feedEvents...)
}

// Create saves a new event. The room gate runs against the current
// snapshot before the backend sees the request; a rejection is returned
// as the form error (form.ErrInvalidWindow or *form.ConflictError).
func (s *Service) Create(ctx context.Context, d Draft) (model.Event, error) {
	session := form.NewSession(s.store, d.fields())
	if err := s.gate(session); err != nil {
		return model.Event{}, err
	}

	ev, err := s.backend.CreateEvent(ctx, d.input())
	metrics.TrackBackendWrite("create", err)
	if err != nil {
		return model.Event{}, fmt.Errorf("events: create: %w", err)
	}
	s.mirror(ev)
	appLog.Info("event created", "id", ev.ID, "kind", ev.Kind, "room", ev.Room)
	return ev, nil
}

// Update saves changes to an existing event. The event itself is excluded
// from the gate so it never conflicts with its own stored version.
func (s *Service) Update(ctx context.Context, id model.EventID, d Draft) (model.Event, error) {
	if id == "" {
		return model.Event{}, backend.ErrNotFound
	}
	if ics.IsFeedEvent(id) {
		return model.Event{}, ErrReadOnly
	}

	current, ok := s.store.Get(id)
	if !ok {
		current = model.Event{ID: id}
	}
	session := form.EditSession(s.store, current)
	session.Set(d.fields())
	if err := s.gate(session); err != nil {
		return model.Event{}, err
	}

	ev, err := s.backend.UpdateEvent(ctx, id, d.input())
	metrics.TrackBackendWrite("update", err)
	if err != nil {
		return model.Event{}, fmt.Errorf("events: update %s: %w", id, err)
	}
	if ev.ID == "" {
		ev.ID = id
	}
	s.mirror(ev)
	appLog.Info("event updated", "id", ev.ID, "kind", ev.Kind, "room", ev.Room)
	return ev, nil
}

// Delete removes an event from the backend, then from the store.
func (s *Service) Delete(ctx context.Context, id model.EventID) error {
	if ics.IsFeedEvent(id) {
		return ErrReadOnly
	}
	err := s.backend.DeleteEvent(ctx, id)
	metrics.TrackBackendWrite("delete", err)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("events: delete %s: %w", id, err)
	}
	s.store.Remove(id)
	metrics.SetStoreSize(s.store.Len())
	if err != nil {
		return fmt.Errorf("events: delete %s: %w", id, err)
	}
	appLog.Info("event deleted", "id", id)
	return nil
}

func (s *Service) gate(session *form.Session) error {
	_, err := session.Submit()
	var conflictErr *form.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, form.ErrInvalidWindow):
		metrics.TrackSubmitRejection("invalid_window")
	case errors.As(err, &conflictErr):
		metrics.TrackSubmitRejection("room_conflict")
		appLog.Info("save blocked by room conflict", "room", conflictErr.Room, "conflicts", len(conflictErr.Conflicts))
	}
	return err
}

func (s *Service) mirror(ev model.Event) {
	if !s.store.Upsert(ev) {
		appLog.Warn("backend returned an event the store cannot hold", "id", ev.ID)
		return
	}
	metrics.SetStoreSize(s.store.Len())
}
