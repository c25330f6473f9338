package model

import (
	"strings"
	"time"
)

// EventID identifies an event for its whole lifetime. Backend ids (numeric
// or string) are normalized to their string form; "" means "no id".
type EventID string

// Kind tags what an event is. Only meeting-class kinds take part in
// time and room conflict checks.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindMeeting          Kind = "meeting"
	KindExecutiveMeeting Kind = "executive_meeting"
	KindActivity         Kind = "activity"
	KindDocument         Kind = "document"
	KindExternalActivity Kind = "external_activity"
)

// MeetingClass reports whether events of this kind occupy a time slot
// (and possibly a room) for conflict purposes. The membership is fixed.
func (k Kind) MeetingClass() bool {
	switch k {
	case KindMeeting, KindExecutiveMeeting:
		return true
	default:
		return false
	}
}

// ParseKind maps a kind name to a Kind. Unrecognized names yield KindUnknown.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMeeting, KindExecutiveMeeting, KindActivity, KindDocument, KindExternalActivity:
		return k
	default:
		return KindUnknown
	}
}

// LocationMode says whether an event happens in a physical room.
type LocationMode string

const (
	InPerson LocationMode = "in_person"
	Virtual  LocationMode = "virtual"
)

// ParseLocationMode normalizes a modality string. Anything that is not
// recognizably in person is treated as virtual, which can never take a room.
func ParseLocationMode(s string) LocationMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_person", "in-person", "inperson", "onsite", "on_site", "presencial":
		return InPerson
	default:
		return Virtual
	}
}

// Room is one of the institution's bookable rooms. The zero value means
// "no room".
type Room string

const (
	NoRoom         Room = ""
	RoomAuditorium Room = "auditorium"
	RoomMeeting    Room = "meeting-room"
	RoomMultiUse   Room = "multi-use-room"
)

// Rooms lists the closed set of bookable rooms.
var Rooms = []Room{RoomAuditorium, RoomMeeting, RoomMultiUse}

// ParseRoom maps a room name to a Room; unknown names yield NoRoom.
func ParseRoom(s string) Room {
	r := Room(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Rooms {
		if r == known {
			return r
		}
	}
	return NoRoom
}

// Window is a [Start, End) time window. Start < End is expected but not
// enforced here; forms validate it separately.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window ends strictly after it starts.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Event is a scheduled item as mirrored from the backend.
type Event struct {
	ID    EventID
	Kind  Kind
	Title string

	// Start / End are wall-clock instants in the configured display timezone.
	Start time.Time
	End   time.Time

	LocationMode LocationMode
	// Room is set only for in-person events.
	Room Room

	AuthorName string
	Sector     string
}

// Window returns the event's time window.
func (e Event) Window() Window {
	return Window{Start: e.Start, End: e.End}
}

// Occurrence is a single concrete instance of a calendar feed event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	FeedID string // room booking feed ID
	UID    string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
