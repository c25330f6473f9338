package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventdesk/internal/model"
)

// Type codes used by the backend for event kinds.
const (
	TypeMeeting          = 1
	TypeExecutiveMeeting = 2
	TypeActivity         = 3
	TypeDocument         = 4
	TypeExternalActivity = 5
)

var kindByType = map[int]model.Kind{
	TypeMeeting:          model.KindMeeting,
	TypeExecutiveMeeting: model.KindExecutiveMeeting,
	TypeActivity:         model.KindActivity,
	TypeDocument:         model.KindDocument,
	TypeExternalActivity: model.KindExternalActivity,
}

// KindForType maps a backend type code to a Kind. Unknown codes map to
// KindUnknown, which never takes part in conflict checks.
func KindForType(code int) model.Kind {
	if k, ok := kindByType[code]; ok {
		return k
	}
	return model.KindUnknown
}

// TypeForKind is the inverse of KindForType; KindUnknown maps to 0.
func TypeForKind(k model.Kind) int {
	for code, kind := range kindByType {
		if kind == k {
			return code
		}
	}
	return 0
}

// wallClock is the layout the backend uses when writing timestamps.
const wallClock = "2006-01-02T15:04:05"

var timeLayouts = []string{
	"2006-01-02T15:04",
	wallClock,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp reads a backend timestamp. Zone-less values are wall-clock
// times in loc; RFC 3339 values are converted into loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FlexibleID accepts both numeric and string ids on the wire.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Ref is an embedded {id, name} reference.
type Ref struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// EventRecord is an event as the backend serializes it.
type EventRecord struct {
	ID       FlexibleID `json:"id"`
	Title    string     `json:"title"`
	Type     int        `json:"type"`
	Start    string     `json:"start"`
	End      string     `json:"end"`
	Modality string     `json:"modality"`
	Room     string     `json:"room"`
	Author   *Ref       `json:"author,omitempty"`
	Sector   *Ref       `json:"sector,omitempty"`
}

// ToEvent normalizes the record. Records without an id or a readable time
// window are rejected so they can never reach conflict checks.
func (r EventRecord) ToEvent(loc *time.Location) (model.Event, error) {
	if r.ID == "" {
		return model.Event{}, errors.New("missing id")
	}
	start, err := ParseTimestamp(r.Start, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTimestamp(r.End, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("end: %w", err)
	}

	ev := model.Event{
		ID:           model.EventID(r.ID),
		Kind:         KindForType(r.Type),
		Title:        r.Title,
		Start:        start,
		End:          end,
		LocationMode: model.ParseLocationMode(r.Modality),
	}
	if ev.LocationMode == model.InPerson {
		ev.Room = model.ParseRoom(r.Room)
	}
	if r.Author != nil {
		ev.AuthorName = r.Author.Name
	}
	if r.Sector != nil {
		ev.Sector = r.Sector.Name
	}
	return ev, nil
}

// EventInput is the body of create and update requests.
type EventInput struct {
	Title    string `json:"title"`
	Type     int    `json:"type"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Modality string `json:"modality"`
	Room     string `json:"room,omitempty"`
	SectorID string `json:"sector_id,omitempty"`
}

// NewEventInput builds a request body with wall-clock timestamps.
func NewEventInput(title string, kind model.Kind, w model.Window, mode model.LocationMode, room model.Room, sectorID string) EventInput {
	in := EventInput{
		Title:    title,
		Type:     TypeForKind(kind),
		Start:    w.Start.Format(wallClock),
		End:      w.End.Format(wallClock),
		Modality: string(mode),
		SectorID: sectorID,
	}
	if mode == model.InPerson {
		in.Room = string(room)
	}
	return in
}

// Sector is an organizational unit of the institution.
type Sector struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// User is a staff member.
type User struct {
	ID       FlexibleID `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	SectorID FlexibleID `json:"sector_id"`
}

// ParseID reads an id typed by a user or taken from a URL. Ids are opaque:
// only surrounding whitespace is dropped, so "007" stays "007".
func ParseID(s string) model.EventID {
	return model.EventID(strings.TrimSpace(s))
}
