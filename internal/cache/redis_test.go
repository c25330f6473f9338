package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventdesk/internal/model"
)

func setupTestCache() (*SnapshotCache, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	c := NewSnapshotCache(db, "eventdesk-test", time.Hour)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return c, mock
}

func sampleEvents() []model.Event {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Event{
		{
			ID:           "1",
			Kind:         model.KindMeeting,
			Title:        "Board meeting",
			Start:        start,
			End:          start.Add(time.Hour),
			LocationMode: model.InPerson,
			Room:         model.RoomAuditorium,
			AuthorName:   "Ana",
			Sector:       "Finance",
		},
		{
			ID:           "2",
			Kind:         model.KindActivity,
			Title:        "Workshop",
			Start:        start,
			End:          start.Add(2 * time.Hour),
			LocationMode: model.Virtual,
		},
	}
}

func TestSnapshotCache_Save(t *testing.T) {
	c, mock := setupTestCache()
	defer mock.ClearExpect()

	events := sampleEvents()
	data, err := c.encode(events)
	require.NoError(t, err)
	mock.ExpectSet("eventdesk-test:snapshot", data, time.Hour).SetVal("OK")

	require.NoError(t, c.Save(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCache_LoadRoundTrip(t *testing.T) {
	c, mock := setupTestCache()
	defer mock.ClearExpect()

	events := sampleEvents()
	data, err := c.encode(events)
	require.NoError(t, err)
	mock.ExpectGet(c.Key()).SetVal(string(data))

	got, ok, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, events, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCache_LoadMissing(t *testing.T) {
	c, mock := setupTestCache()
	defer mock.ClearExpect()

	mock.ExpectGet(c.Key()).RedisNil()

	got, ok, err := c.Load(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSnapshotCache_LoadErrors(t *testing.T) {
	c, mock := setupTestCache()
	defer mock.ClearExpect()

	mock.ExpectGet(c.Key()).SetErr(errors.New("connection refused"))
	_, ok, err := c.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)

	mock.ExpectGet(c.Key()).SetVal("{not json")
	_, ok, err = c.Load(context.Background())
	assert.ErrorContains(t, err, "corrupt snapshot")
	assert.False(t, ok)
}

func TestSnapshotCache_HealthCheck(t *testing.T) {
	c, mock := setupTestCache()
	defer mock.ClearExpect()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, c.HealthCheck(context.Background()))

	mock.ExpectPing().SetErr(errors.New("down"))
	assert.ErrorContains(t, c.HealthCheck(context.Background()), "redis health check failed")
}
