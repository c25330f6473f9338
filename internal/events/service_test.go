package events

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventdesk/internal/backend"
	"eventdesk/internal/form"
	"eventdesk/internal/model"
	"eventdesk/internal/store"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListEvents(ctx context.Context) ([]model.Event, error) {
	args := m.Called(ctx)
	evs, _ := args.Get(0).([]model.Event)
	return evs, args.Error(1)
}

func (m *MockBackend) CreateEvent(ctx context.Context, in backend.EventInput) (model.Event, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockBackend) UpdateEvent(ctx context.Context, id model.EventID, in backend.EventInput) (model.Event, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockBackend) DeleteEvent(ctx context.Context, id model.EventID) error {
	return m.Called(ctx, id).Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Save(ctx context.Context, events []model.Event) error {
	return m.Called(ctx, events).Error(0)
}

func (m *MockCache) Load(ctx context.Context) ([]model.Event, bool, error) {
	args := m.Called(ctx)
	evs, _ := args.Get(0).([]model.Event)
	return evs, args.Bool(1), args.Error(2)
}

type staticFeeds struct {
	events []model.Event
	err    error
}

func (f staticFeeds) Load(context.Context) ([]model.Event, error) {
	return f.events, f.err
}

func hm(h, m int) time.Time {
	return time.Date(2026, time.October, 20, h, m, 0, 0, time.UTC)
}

func meeting(id string, room model.Room, start, end time.Time) model.Event {
	return model.Event{
		ID: model.EventID(id), Kind: model.KindMeeting, Title: "Meeting " + id,
		Start: start, End: end, LocationMode: model.InPerson, Room: room, AuthorName: "Ana",
	}
}

func TestRefreshReplacesStoreAndSavesCache(t *testing.T) {
	ctx := context.Background()
	b := &MockBackend{}
	c := &MockCache{}
	fetched := []model.Event{meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0))}
	booking := meeting("ics:aud:x:1", model.RoomAuditorium, hm(14, 0), hm(15, 0))

	b.On("ListEvents", mock.Anything).Return(fetched, nil)
	c.On("Save", mock.Anything, fetched).Return(nil)

	st := store.New()
	svc := NewService(b, st, WithCache(c), WithFeeds(staticFeeds{events: []model.Event{booking}}))

	res := svc.Refresh(ctx)
	assert.NoError(t, res.Err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, res.Count)

	snap := st.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, model.EventID("1"), snap[0].ID)
	assert.Equal(t, booking.ID, snap[1].ID)

	b.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestRefreshFallsBackToCache(t *testing.T) {
	b := &MockBackend{}
	c := &MockCache{}
	cached := []model.Event{meeting("7", model.RoomMeeting, hm(9, 0), hm(10, 0))}
	boom := errors.New("connection refused")

	b.On("ListEvents", mock.Anything).Return(nil, boom)
	c.On("Load", mock.Anything).Return(cached, true, nil)

	st := store.New()
	res := NewService(b, st, WithCache(c)).Refresh(context.Background())

	assert.ErrorIs(t, res.Err, boom)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, cached, st.Snapshot())
	c.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRefreshKeepsCurrentSnapshotWithoutCache(t *testing.T) {
	b := &MockBackend{}
	b.On("ListEvents", mock.Anything).Return(nil, errors.New("down"))

	st := store.New()
	st.Replace([]model.Event{meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0))})

	res := NewService(b, st).Refresh(context.Background())
	assert.Error(t, res.Err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, res.Count)
	assert.Len(t, st.Snapshot(), 1)
}

func TestRefreshEmptyCacheOnFirstStart(t *testing.T) {
	b := &MockBackend{}
	c := &MockCache{}
	b.On("ListEvents", mock.Anything).Return(nil, errors.New("down"))
	c.On("Load", mock.Anything).Return(nil, false, nil)

	st := store.New()
	res := NewService(b, st, WithCache(c)).Refresh(context.Background())
	assert.Error(t, res.Err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, st.Snapshot())
}

func TestRefreshReportsFeedErrors(t *testing.T) {
	b := &MockBackend{}
	b.On("ListEvents", mock.Anything).Return([]model.Event{}, nil)

	res := NewService(b, store.New(), WithFeeds(staticFeeds{err: errors.New("feed down")})).Refresh(context.Background())
	assert.NoError(t, res.Err)
	assert.Error(t, res.FeedErr)
}

func TestCreateBlockedByRoomConflict(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	st.Replace([]model.Event{meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0))})

	svc := NewService(b, st)
	_, err := svc.Create(context.Background(), Draft{
		Title: "Clash", Kind: model.KindMeeting,
		Start: hm(9, 30), End: hm(10, 30),
		LocationMode: model.InPerson, Room: model.RoomAuditorium,
	})

	var conflictErr *form.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.ErrorIs(t, err, form.ErrRoomConflict)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, model.EventID("1"), conflictErr.Conflicts[0].ID)
	b.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestCreateRejectsInvalidWindow(t *testing.T) {
	b := &MockBackend{}
	svc := NewService(b, store.New())

	_, err := svc.Create(context.Background(), Draft{
		Title: "Backwards", Kind: model.KindMeeting,
		Start: hm(11, 0), End: hm(10, 0), LocationMode: model.Virtual,
	})
	assert.ErrorIs(t, err, form.ErrInvalidWindow)
	b.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestCreateMirrorsBackendResult(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	st.Replace([]model.Event{meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0))})

	d := Draft{
		Title: "Next door", Kind: model.KindMeeting,
		Start: hm(10, 0), End: hm(11, 0),
		LocationMode: model.InPerson, Room: model.RoomAuditorium, Sector: "3",
	}
	created := meeting("2", model.RoomAuditorium, hm(10, 0), hm(11, 0))
	b.On("CreateEvent", mock.Anything, d.input()).Return(created, nil)

	ev, err := NewService(b, st).Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, created, ev)

	got, ok := st.Get("2")
	require.True(t, ok)
	assert.Equal(t, created, got)
	assert.Equal(t, 2, st.Len())
	b.AssertExpectations(t)
}

func TestCreateBackendFailureLeavesStoreUntouched(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	b.On("CreateEvent", mock.Anything, mock.Anything).
		Return(model.Event{}, &backend.StatusError{Method: http.MethodPost, Path: "/events", Code: 500})

	_, err := NewService(b, st).Create(context.Background(), Draft{
		Title: "x", Kind: model.KindActivity, Start: hm(9, 0), End: hm(10, 0), LocationMode: model.Virtual,
	})
	var statusErr *backend.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 0, st.Len())
}

func TestUpdateExcludesItself(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	original := meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0))
	st.Replace([]model.Event{original})

	d := Draft{
		Title: "Longer", Kind: model.KindMeeting,
		Start: hm(9, 0), End: hm(10, 30),
		LocationMode: model.InPerson, Room: model.RoomAuditorium,
	}
	updated := meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 30))
	b.On("UpdateEvent", mock.Anything, model.EventID("1"), d.input()).Return(updated, nil)

	ev, err := NewService(b, st).Update(context.Background(), "1", d)
	require.NoError(t, err)
	assert.Equal(t, updated, ev)
	assert.Equal(t, []model.Event{updated}, st.Snapshot())
}

func TestUpdateBlockedByOtherMeeting(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	st.Replace([]model.Event{
		meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0)),
		meeting("2", model.RoomAuditorium, hm(10, 0), hm(11, 0)),
	})

	_, err := NewService(b, st).Update(context.Background(), "1", Draft{
		Title: "Overrun", Kind: model.KindMeeting,
		Start: hm(9, 0), End: hm(10, 30),
		LocationMode: model.InPerson, Room: model.RoomAuditorium,
	})
	var conflictErr *form.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, model.EventID("2"), conflictErr.Conflicts[0].ID)
}

func TestWritesToFeedEventsAreRejected(t *testing.T) {
	svc := NewService(&MockBackend{}, store.New())

	_, err := svc.Update(context.Background(), "ics:aud:x:1", Draft{Start: hm(9, 0), End: hm(10, 0)})
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, svc.Delete(context.Background(), "ics:aud:x:1"), ErrReadOnly)
}

func TestDelete(t *testing.T) {
	b := &MockBackend{}
	st := store.New()
	st.Replace([]model.Event{
		meeting("1", model.RoomAuditorium, hm(9, 0), hm(10, 0)),
		meeting("2", model.RoomMeeting, hm(9, 0), hm(10, 0)),
	})
	b.On("DeleteEvent", mock.Anything, model.EventID("1")).Return(nil)
	b.On("DeleteEvent", mock.Anything, model.EventID("2")).
		Return(&backend.StatusError{Method: http.MethodDelete, Path: "/events/2", Code: http.StatusNotFound})
	b.On("DeleteEvent", mock.Anything, model.EventID("3")).Return(errors.New("timeout"))

	svc := NewService(b, st)
	require.NoError(t, svc.Delete(context.Background(), "1"))
	assert.Equal(t, 1, st.Len())

	err := svc.Delete(context.Background(), "2")
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.Equal(t, 0, st.Len())

	assert.Error(t, svc.Delete(context.Background(), "3"))
}
