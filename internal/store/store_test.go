package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventdesk/internal/model"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func ev(id string, offsetHours int) model.Event {
	start := t0.Add(time.Duration(offsetHours) * time.Hour)
	return model.Event{
		ID:           model.EventID(id),
		Kind:         model.KindMeeting,
		Title:        "event " + id,
		Start:        start,
		End:          start.Add(time.Hour),
		LocationMode: model.InPerson,
		Room:         model.RoomAuditorium,
	}
}

func idsOf(events []model.Event) []model.EventID {
	out := make([]model.EventID, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestStore_ReplaceKeepsOrderAndDropsInvalid(t *testing.T) {
	s := New()

	noID := ev("", 0)
	noEnd := ev("x", 0)
	noEnd.End = time.Time{}

	s.Replace([]model.Event{ev("b", 1), noID, ev("a", 0), noEnd, ev("c", 2)})

	assert.Equal(t, []model.EventID{"b", "a", "c"}, idsOf(s.Snapshot()))
	assert.Equal(t, 3, s.Len())
}

func TestStore_ReplaceDuplicateIDLastWins(t *testing.T) {
	s := New()
	first := ev("a", 0)
	second := ev("a", 5)
	second.Title = "updated"

	s.Replace([]model.Event{first, ev("b", 1), second})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, model.EventID("a"), snap[0].ID)
	assert.Equal(t, "updated", snap[0].Title)
}

func TestStore_UpsertKeepsPosition(t *testing.T) {
	s := New()
	s.Replace([]model.Event{ev("a", 0), ev("b", 1)})

	changed := ev("a", 3)
	changed.Room = model.RoomMeeting
	assert.True(t, s.Upsert(changed))
	assert.True(t, s.Upsert(ev("c", 4)))
	assert.False(t, s.Upsert(ev("", 4)))

	assert.Equal(t, []model.EventID{"a", "b", "c"}, idsOf(s.Snapshot()))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.RoomMeeting, got.Room)
}

func TestStore_Remove(t *testing.T) {
	s := New()
	s.Replace([]model.Event{ev("a", 0), ev("b", 1), ev("c", 2)})

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []model.EventID{"a", "c"}, idsOf(s.Snapshot()))

	// Index must follow the shifted positions.
	assert.True(t, s.Upsert(ev("c", 7)))
	got, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, t0.Add(7*time.Hour), got.Start)
	assert.Equal(t, 2, s.Len())
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := New()
	s.Replace([]model.Event{ev("a", 0)})

	snap := s.Snapshot()
	snap[0].Title = "mutated"
	older := s.Snapshot()

	s.Upsert(ev("b", 1))

	assert.Equal(t, "event a", s.Snapshot()[0].Title)
	assert.Len(t, older, 1)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Upsert(ev(string(rune('a'+n)), j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
}
