// Package conflict answers whether a proposed event window collides with
// meetings already on the calendar, either anywhere in time or in a given
// room.
//
// Every function here is a pure function of its arguments: the snapshot is
// passed in explicitly, never mutated, and no query can fail. Results keep
// the snapshot's order.
package conflict

import (
	"eventdesk/internal/model"
)

// Overlaps reports whether the candidate window collides with an existing
// one. It is true when any of the following holds:
//
//   - the candidate starts inside the existing window (s2 <= s1 < e2)
//   - the candidate ends inside the existing window   (s2 < e1 <= e2)
//   - the candidate covers the existing window        (s1 <= s2 && e1 >= e2)
//
// Back-to-back windows (e1 == s2 or e2 == s1) do not overlap. Unlike the
// plain half-open test (s1 < e2 && s2 < e1), zero-length windows sitting on
// a boundary of the other window do overlap.
func Overlaps(candidate, existing model.Window) bool {
	s1, e1 := candidate.Start, candidate.End
	s2, e2 := existing.Start, existing.End

	// s2 <= s1 < e2
	if !s1.Before(s2) && s1.Before(e2) {
		return true
	}
	// s2 < e1 <= e2
	if s2.Before(e1) && !e2.Before(e1) {
		return true
	}
	// s1 <= s2 && e1 >= e2
	return !s2.Before(s1) && !e1.Before(e2)
}

// HasTimeConflict reports whether any meeting-class event other than
// excludeID overlaps window.
func HasTimeConflict(snapshot []model.Event, window model.Window, excludeID model.EventID) bool {
	for i := range snapshot {
		if timeCandidate(&snapshot[i], excludeID) && Overlaps(window, snapshot[i].Window()) {
			return true
		}
	}
	return false
}

// ListTimeConflicts returns every meeting-class event other than excludeID
// whose window overlaps window.
func ListTimeConflicts(snapshot []model.Event, window model.Window, excludeID model.EventID) []model.Event {
	var out []model.Event
	for i := range snapshot {
		if timeCandidate(&snapshot[i], excludeID) && Overlaps(window, snapshot[i].Window()) {
			out = append(out, snapshot[i])
		}
	}
	return out
}

// HasRoomConflict reports whether an in-person meeting in room, other than
// excludeID, overlaps window. An empty room never conflicts.
func HasRoomConflict(snapshot []model.Event, window model.Window, room model.Room, excludeID model.EventID) bool {
	if room == model.NoRoom {
		return false
	}
	for i := range snapshot {
		if roomCandidate(&snapshot[i], room, excludeID) && Overlaps(window, snapshot[i].Window()) {
			return true
		}
	}
	return false
}

// ListRoomConflicts returns every in-person meeting in room, other than
// excludeID, whose window overlaps window. An empty room yields nil.
func ListRoomConflicts(snapshot []model.Event, window model.Window, room model.Room, excludeID model.EventID) []model.Event {
	if room == model.NoRoom {
		return nil
	}
	var out []model.Event
	for i := range snapshot {
		if roomCandidate(&snapshot[i], room, excludeID) && Overlaps(window, snapshot[i].Window()) {
			out = append(out, snapshot[i])
		}
	}
	return out
}

func timeCandidate(ev *model.Event, excludeID model.EventID) bool {
	if excludeID != "" && ev.ID == excludeID {
		return false
	}
	return ev.Kind.MeetingClass()
}

func roomCandidate(ev *model.Event, room model.Room, excludeID model.EventID) bool {
	if !timeCandidate(ev, excludeID) {
		return false
	}
	return ev.LocationMode == model.InPerson && ev.Room != model.NoRoom && ev.Room == room
}
