// Package store holds the local mirror of the backend's events.
//
// The store owns no conflict logic. It is the single source of truth for
// "currently known events" and hands out snapshots that the conflict engine
// reads. Writes happen only after a backend round trip has completed, so a
// reader during an in-flight write sees the previous, consistent snapshot.
package store

import (
	"sync"

	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
)

// Store is an in-memory, concurrency-safe event collection that keeps
// insertion order. The zero value is not usable; call New.
type Store struct {
	mu     sync.RWMutex
	events []model.Event // never mutated in place; replaced on write
	index  map[model.EventID]int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[model.EventID]int)}
}

// Snapshot returns a copy of the current events in insertion order.
func (s *Store) Snapshot() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Get returns the event with the given id.
func (s *Store) Get(id model.EventID) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Event{}, false
	}
	return s.events[i], true
}

// Replace swaps the whole collection, as after a full refetch. Events
// without an id or without both timestamps are dropped. When an id occurs
// more than once, the last record wins and keeps the first one's position.
func (s *Store) Replace(events []model.Event) {
	next := make([]model.Event, 0, len(events))
	index := make(map[model.EventID]int, len(events))

	for _, ev := range events {
		if !admissible(ev) {
			appLog.Debug("store: dropping event without id or time window", "id", ev.ID, "title", ev.Title)
			continue
		}
		if i, dup := index[ev.ID]; dup {
			next[i] = ev
			continue
		}
		index[ev.ID] = len(next)
		next = append(next, ev)
	}

	s.mu.Lock()
	s.events = next
	s.index = index
	s.mu.Unlock()
}

// Upsert records the outcome of a completed create or update. An existing
// event keeps its position; a new one is appended. It reports false when
// the event is not admissible and was ignored.
func (s *Store) Upsert(ev model.Event) bool {
	if !admissible(ev) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Event, len(s.events), len(s.events)+1)
	copy(next, s.events)

	if i, ok := s.index[ev.ID]; ok {
		next[i] = ev
		s.events = next
		return true
	}

	s.index[ev.ID] = len(next)
	s.events = append(next, ev)
	return true
}

// Remove drops the event with the given id, reporting whether it existed.
func (s *Store) Remove(id model.EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}

	next := make([]model.Event, 0, len(s.events)-1)
	next = append(next, s.events[:i]...)
	next = append(next, s.events[i+1:]...)

	index := make(map[model.EventID]int, len(next))
	for j, ev := range next {
		index[ev.ID] = j
	}

	s.events = next
	s.index = index
	return true
}

func admissible(ev model.Event) bool {
	return ev.ID != "" && !ev.Start.IsZero() && !ev.End.IsZero()
}
