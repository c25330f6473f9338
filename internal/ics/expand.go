package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
)

const defaultMaxOccurrences = 2000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the display zone occurrences are converted into. Nil
	// means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd delimit the occurrences of interest.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps a single series; zero means defaultMaxOccurrences.
	MaxOccurrences int
}

// ExpandResult holds the occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Truncated   []string
}

// ExpandOccurrences turns parsed events into concrete occurrences within
// the configured range: single events, RRULE series minus EXDATEs, with
// RECURRENCE-ID overrides replacing the instance they name.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: range end is before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	var order []string
	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range order {
		truncated := false
		for _, ev := range bases[uid] {
			var occ []model.Occurrence
			hitCap := false
			if ev.RawRRule == "" {
				occ = expandSingle(ev, overrides[uid], cfg)
			} else {
				occ, hitCap = expandSeries(ev, overrides[uid], cfg)
			}
			result.Occurrences = append(result.Occurrences, occ...)
			truncated = truncated || hitCap
		}
		if truncated {
			result.Truncated = append(result.Truncated, uid)
			appLog.Warn("expand: series truncated", "uid", uid, "cap", cfg.MaxOccurrences)
		}
	}

	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	if !inRange(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.Location)}
}

func expandSeries(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)
	// Widen the lower bound by one duration so a series instance that began
	// before RangeStart but is still running is kept.
	from := cfg.RangeStart.Add(-duration).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(duration)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, 1)
		}

		inst, start, end := ev, s, e
		if o, ok := findOverride(overrides, s); ok {
			inst, start, end = o, o.Start, o.End
		}
		if !inRange(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(inst, start, end, cfg.Location))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID names start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	start, end = start.In(loc), end.In(loc)
	return model.Occurrence{
		FeedID:      ev.Feed.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

// inRange keeps occurrences that touch [rangeStart, rangeEnd].
func inRange(start, end, rangeStart, rangeEnd time.Time) bool {
	return !end.Before(rangeStart) && !rangeEnd.Before(start)
}
