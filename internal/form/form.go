// Package form keeps an event form's room-conflict warnings and its save
// gate consistent with the fields the user has typed so far.
//
// The warning list is a derived value: Derive recomputes it from the
// current fields and the latest store snapshot every time, synchronously,
// so it can never lag behind the inputs.
package form

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"eventdesk/internal/conflict"
	"eventdesk/internal/model"
)

var (
	// ErrInvalidWindow is reported when the end is not after the start.
	ErrInvalidWindow = errors.New("end must be after start")
	// ErrRoomConflict is wrapped by *ConflictError.
	ErrRoomConflict = errors.New("room is already booked for this time")
)

// ConflictError rejects a save whose room and window collide with existing
// meetings.
type ConflictError struct {
	Room      model.Room
	Conflicts []model.Event
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s has %d conflicting meeting(s)", ErrRoomConflict, e.Room, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error {
	return ErrRoomConflict
}

// Fields are the form inputs that drive the room-conflict check.
type Fields struct {
	LocationMode model.LocationMode `json:"location_mode"`
	Room         model.Room         `json:"room"`
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
}

// Window returns the candidate window described by the fields.
func (f Fields) Window() model.Window {
	return model.Window{Start: f.Start, End: f.End}
}

// Phase is where a form session sits in its check cycle:
// Idle -> (checking) -> Clear | Conflicted.
type Phase string

const (
	// PhaseIdle: not in person, or no room selected. Nothing to check.
	PhaseIdle Phase = "idle"
	// PhaseClear: room and window set, no conflicting meeting.
	PhaseClear Phase = "clear"
	// PhaseConflicted: at least one conflicting meeting; saving is blocked.
	PhaseConflicted Phase = "conflicted"
)

// State is what the form shows: the warning list and whether save is
// blocked.
type State struct {
	Phase     Phase
	Conflicts []model.Event
	Blocked   bool
}

// Derive computes the form state from the fields and a snapshot. excludeID
// is the id of the event being edited, or "" for a new event.
func Derive(fields Fields, snapshot []model.Event, excludeID model.EventID) State {
	if fields.LocationMode != model.InPerson || fields.Room == model.NoRoom {
		return State{Phase: PhaseIdle}
	}

	conflicts := conflict.ListRoomConflicts(snapshot, fields.Window(), fields.Room, excludeID)
	if len(conflicts) == 0 {
		return State{Phase: PhaseClear}
	}
	return State{Phase: PhaseConflicted, Conflicts: conflicts, Blocked: true}
}

// Validate runs the submit-time checks: a well-formed window first, then
// the room gate. It returns ErrInvalidWindow or a *ConflictError.
func Validate(fields Fields, snapshot []model.Event, excludeID model.EventID) error {
	if !fields.Window().Valid() {
		return ErrInvalidWindow
	}
	st := Derive(fields, snapshot, excludeID)
	if st.Blocked {
		return &ConflictError{Room: fields.Room, Conflicts: st.Conflicts}
	}
	return nil
}

// Snapshotter gives synchronous read access to the currently known events.
type Snapshotter interface {
	Snapshot() []model.Event
}

// Session is one open event form. Every setter re-derives the state
// against the latest snapshot before returning it.
type Session struct {
	source    Snapshotter
	excludeID model.EventID

	mu     sync.Mutex
	fields Fields
	state  State
}

// NewSession opens a form for a new event.
func NewSession(source Snapshotter, initial Fields) *Session {
	s := &Session{source: source}
	s.apply(func(f *Fields) { *f = initial })
	return s
}

// EditSession opens a form for an existing event. The event is excluded
// from conflict checks for the whole session.
func EditSession(source Snapshotter, ev model.Event) *Session {
	s := &Session{source: source, excludeID: ev.ID}
	s.apply(func(f *Fields) {
		*f = Fields{
			LocationMode: ev.LocationMode,
			Room:         ev.Room,
			Start:        ev.Start,
			End:          ev.End,
		}
	})
	return s
}

// ExcludeID returns the id of the event being edited, if any.
func (s *Session) ExcludeID() model.EventID {
	return s.excludeID
}

func (s *Session) SetLocationMode(m model.LocationMode) State {
	return s.apply(func(f *Fields) { f.LocationMode = m })
}

func (s *Session) SetRoom(r model.Room) State {
	return s.apply(func(f *Fields) { f.Room = r })
}

func (s *Session) SetStart(t time.Time) State {
	return s.apply(func(f *Fields) { f.Start = t })
}

func (s *Session) SetEnd(t time.Time) State {
	return s.apply(func(f *Fields) { f.End = t })
}

// Set replaces all fields at once.
func (s *Session) Set(fields Fields) State {
	return s.apply(func(f *Fields) { *f = fields })
}

// Fields returns the current inputs.
func (s *Session) Fields() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// State re-derives against the latest snapshot, so a store refresh is
// reflected even without a field change.
func (s *Session) State() State {
	return s.apply(func(*Fields) {})
}

// Submit re-checks the gate at submit time. A disabled save button is not
// enough: a programmatic submit must be rejected the same way.
func (s *Session) Submit() (Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Derive(s.fields, s.source.Snapshot(), s.excludeID)
	if !s.fields.Window().Valid() {
		return Fields{}, ErrInvalidWindow
	}
	if s.state.Blocked {
		return Fields{}, &ConflictError{Room: s.fields.Room, Conflicts: s.state.Conflicts}
	}
	return s.fields, nil
}

func (s *Session) apply(mutate func(*Fields)) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.fields)
	s.state = Derive(s.fields, s.source.Snapshot(), s.excludeID)
	return s.state
}
