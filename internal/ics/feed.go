package ics

import (
	"context"
	"errors"
	"strings"
	"time"

	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
)

// FeedIDPrefix marks events that come from room booking feeds rather than
// from the backend.
const FeedIDPrefix = "ics:"

// IsFeedEvent reports whether id was produced by FeedEvents.
func IsFeedEvent(id model.EventID) bool {
	return strings.HasPrefix(string(id), FeedIDPrefix)
}

// FeedEvents turns a feed's occurrences into in-person meetings occupying
// the feed's room, so external bookings take part in room conflict checks.
func FeedEvents(feed Feed, occurrences []model.Occurrence) []model.Event {
	if feed.Room == model.NoRoom {
		return nil
	}
	out := make([]model.Event, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.FeedID != feed.ID {
			continue
		}
		title := occ.Summary
		if title == "" {
			title = "Room booking"
		}
		out = append(out, model.Event{
			ID:           model.EventID(FeedIDPrefix + feed.ID + ":" + occ.UID + ":" + occ.InstanceKey),
			Kind:         model.KindMeeting,
			Title:        title,
			Start:        occ.Start,
			End:          occ.End,
			LocationMode: model.InPerson,
			Room:         feed.Room,
			AuthorName:   feed.ID,
		})
	}
	return out
}

// Loader pulls every configured feed and returns their bookings as events.
type Loader struct {
	Fetcher *Fetcher
	Feeds   []Feed
	// Horizon is how far past now recurring bookings are expanded.
	Horizon  time.Duration
	Location *time.Location
	Now      func() time.Time
}

// Load fetches, parses and expands all feeds. A failing feed contributes
// nothing but does not stop the others; the joined error reports it.
func (l *Loader) Load(ctx context.Context) ([]model.Event, error) {
	if len(l.Feeds) == 0 {
		return nil, nil
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}

	results, errs := l.Fetcher.FetchAll(ctx, l.Feeds)

	// Keep a day of history so today's earlier bookings still block.
	rangeStart := now().In(loc).AddDate(0, 0, -1)
	cfg := ExpandConfig{
		Location:   loc,
		RangeStart: rangeStart,
		RangeEnd:   now().In(loc).Add(l.Horizon),
	}

	var events []model.Event
	for _, res := range results {
		parsed, err := ParseICS(res.Feed, res.Body)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("feed parse failed", err, "feed", res.Feed.ID)
			continue
		}
		expanded, err := ExpandOccurrences(parsed, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		feedEvents := FeedEvents(res.Feed, expanded.Occurrences)
		appLog.Debug("feed loaded", "feed", res.Feed.ID, "room", res.Feed.Room, "bookings", len(feedEvents), "from_cache", res.FromCache)
		events = append(events, feedEvents...)
	}

	return events, errors.Join(errs...)
}
