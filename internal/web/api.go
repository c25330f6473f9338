package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"eventdesk/internal/backend"
	"eventdesk/internal/conflict"
	"eventdesk/internal/events"
	"eventdesk/internal/export"
	"eventdesk/internal/form"
	"eventdesk/internal/ics"
	appLog "eventdesk/internal/log"
	"eventdesk/internal/metrics"
	"eventdesk/internal/model"
)

// eventDTO is the JSON view of a stored event.
type eventDTO struct {
	ID           model.EventID      `json:"id"`
	Kind         model.Kind         `json:"kind"`
	Title        string             `json:"title"`
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	LocationMode model.LocationMode `json:"location_mode"`
	Room         model.Room         `json:"room,omitempty"`
	AuthorName   string             `json:"author_name,omitempty"`
	Sector       string             `json:"sector,omitempty"`
	ReadOnly     bool               `json:"read_only,omitempty"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:           ev.ID,
		Kind:         ev.Kind,
		Title:        ev.Title,
		Start:        ev.Start,
		End:          ev.End,
		LocationMode: ev.LocationMode,
		Room:         ev.Room,
		AuthorName:   ev.AuthorName,
		Sector:       ev.Sector,
		ReadOnly:     ics.IsFeedEvent(ev.ID),
	}
}

// conflictDTO is one line of the conflict warning: what is already there,
// when, and who booked it.
type conflictDTO struct {
	ID         model.EventID `json:"id"`
	Title      string        `json:"title"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	AuthorName string        `json:"author_name"`
}

func toConflictDTOs(evs []model.Event) []conflictDTO {
	out := make([]conflictDTO, 0, len(evs))
	for _, ev := range evs {
		out = append(out, conflictDTO{
			ID:         ev.ID,
			Title:      ev.Title,
			Start:      ev.Start,
			End:        ev.End,
			AuthorName: ev.AuthorName,
		})
	}
	return out
}

type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	DisplayTimeZone string     `json:"display_timezone"`
}

// handleListEvents returns the current snapshot.
//
// GET /api/events?from=&to=
//   - from/to: optional bounds; events overlapping [from, to) are kept.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	snapshot := s.svc.Store().Snapshot()

	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, err := s.parseRange(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		snapshot = within(snapshot, from, to)
	}

	dtos := make([]eventDTO, 0, len(snapshot))
	for _, ev := range snapshot {
		dtos = append(dtos, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: dtos, DisplayTimeZone: s.loc.String()})
}

type conflictsResponse struct {
	Scope     string        `json:"scope"`
	Conflicts []conflictDTO `json:"conflicts"`
}

// handleConflicts answers a conflict query against the current snapshot.
//
// GET /api/conflicts?start=&end=&room=&exclude=&scope=room|time
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := s.parseTime(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := s.parseTime(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	window := model.Window{Start: start, End: end}
	exclude := backend.ParseID(q.Get("exclude"))
	snapshot := s.svc.Store().Snapshot()

	scope := strings.ToLower(q.Get("scope"))
	var found []model.Event
	switch scope {
	case "", "room":
		scope = "room"
		room := model.ParseRoom(q.Get("room"))
		if q.Get("room") != "" && room == model.NoRoom {
			writeError(w, http.StatusBadRequest, "unknown room")
			return
		}
		found = conflict.ListRoomConflicts(snapshot, window, room, exclude)
	case "time":
		found = conflict.ListTimeConflicts(snapshot, window, exclude)
	default:
		writeError(w, http.StatusBadRequest, "scope must be room or time")
		return
	}

	metrics.TrackConflictQuery(scope, len(found))
	writeJSON(w, http.StatusOK, conflictsResponse{Scope: scope, Conflicts: toConflictDTOs(found)})
}

type deriveRequest struct {
	LocationMode string `json:"location_mode"`
	Room         string `json:"room"`
	Start        string `json:"start"`
	End          string `json:"end"`
	ExcludeID    string `json:"exclude_id"`
}

type deriveResponse struct {
	Phase       form.Phase    `json:"phase"`
	Blocked     bool          `json:"blocked"`
	WindowValid bool          `json:"window_valid"`
	Conflicts   []conflictDTO `json:"conflicts"`
}

// handleDerive recomputes the form state for the fields currently on
// screen. Empty times are allowed while the user is still typing.
//
// POST /api/form/derive
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	var req deriveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := form.Fields{
		LocationMode: model.ParseLocationMode(req.LocationMode),
		Room:         model.ParseRoom(req.Room),
	}
	var err error
	if req.Start != "" {
		if fields.Start, err = s.parseTime(req.Start); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return
		}
	}
	if req.End != "" {
		if fields.End, err = s.parseTime(req.End); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
			return
		}
	}

	st := form.Derive(fields, s.svc.Store().Snapshot(), backend.ParseID(req.ExcludeID))
	if st.Phase != form.PhaseIdle {
		metrics.TrackConflictQuery("room", len(st.Conflicts))
	}
	writeJSON(w, http.StatusOK, deriveResponse{
		Phase:       st.Phase,
		Blocked:     st.Blocked,
		WindowValid: fields.Window().Valid(),
		Conflicts:   toConflictDTOs(st.Conflicts),
	})
}

type draftRequest struct {
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Start        string `json:"start"`
	End          string `json:"end"`
	LocationMode string `json:"location_mode"`
	Room         string `json:"room"`
	SectorID     string `json:"sector_id"`
}

func (s *Server) decodeDraft(r *http.Request) (events.Draft, error) {
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		return events.Draft{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return events.Draft{}, errors.New("title is required")
	}

	kind := model.KindMeeting
	if req.Kind != "" {
		if kind = model.ParseKind(req.Kind); kind == model.KindUnknown {
			return events.Draft{}, fmt.Errorf("unknown kind %q", req.Kind)
		}
	}
	start, err := s.parseTime(req.Start)
	if err != nil {
		return events.Draft{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := s.parseTime(req.End)
	if err != nil {
		return events.Draft{}, fmt.Errorf("invalid end: %w", err)
	}
	mode := model.ParseLocationMode(req.LocationMode)
	room := model.ParseRoom(req.Room)
	if mode == model.InPerson && req.Room != "" && room == model.NoRoom {
		return events.Draft{}, fmt.Errorf("unknown room %q", req.Room)
	}

	return events.Draft{
		Title:        strings.TrimSpace(req.Title),
		Kind:         kind,
		Start:        start,
		End:          end,
		LocationMode: mode,
		Room:         room,
		Sector:       req.SectorID,
	}, nil
}

type conflictErrorResponse struct {
	Error     string        `json:"error"`
	Room      model.Room    `json:"room"`
	Conflicts []conflictDTO `json:"conflicts"`
}

// writeSaveError maps a write failure to a status code. Gate rejections
// are the client's to fix; anything else came from the backend.
func writeSaveError(w http.ResponseWriter, err error) {
	var conflictErr *form.ConflictError
	switch {
	case errors.Is(err, form.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, form.ErrInvalidWindow.Error())
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, conflictErrorResponse{
			Error:     form.ErrRoomConflict.Error(),
			Room:      conflictErr.Room,
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		})
	case errors.Is(err, events.ErrReadOnly):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	default:
		appLog.Error("backend write failed", err)
		writeError(w, http.StatusBadGateway, "backend request failed")
	}
}

// POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	d, err := s.decodeDraft(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.svc.Create(r.Context(), d)
	if err != nil {
		writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(ev))
}

// PUT /api/events/{id}
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := backend.ParseID(r.PathValue("id"))
	d, err := s.decodeDraft(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.svc.Update(r.Context(), id, d)
	if err != nil {
		writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(ev))
}

// DELETE /api/events/{id}
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := backend.ParseID(r.PathValue("id"))
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeSaveError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshResponse struct {
	Count     int    `json:"count"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
	FeedError string `json:"feed_error,omitempty"`
}

// handleRefresh refetches on demand. A backend outage is reported in the
// body, not the status: the store still serves its best snapshot.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res := s.svc.Refresh(r.Context())
	resp := refreshResponse{Count: res.Count, FromCache: res.FromCache}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.FeedErr != nil {
		resp.FeedError = res.FeedErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/events.ics
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body := ics.ExportCalendar("eventdesk", s.svc.Store().Snapshot(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="eventdesk.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleAgendaPDF prints the agenda for a range, with its room conflicts.
//
// GET /api/agenda.pdf?from=&to=
//   - defaults: today 00:00 to seven days later.
func (s *Server) handleAgendaPDF(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Export.Enabled {
		writeError(w, http.StatusServiceUnavailable, "PDF export is disabled")
		return
	}

	q := r.URL.Query()
	from, to, err := s.parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	agenda := within(s.svc.Store().Snapshot(), from, to)
	sort.SliceStable(agenda, func(i, j int) bool { return agenda[i].Start.Before(agenda[j].Start) })

	title := fmt.Sprintf("Agenda %s - %s", from.Format("02 Jan 2006"), to.Format("02 Jan 2006"))
	html, err := export.RenderAgendaHTML(title, agenda, export.FindClashes(agenda), s.now().In(s.loc))
	if err != nil {
		appLog.Error("agenda render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render agenda")
		return
	}

	pdf, err := s.print(r.Context(), html, export.PrintOptions{
		Timeout:  s.cfg.Export.Timeout,
		ExecPath: s.cfg.Export.ChromePath,
	})
	if err != nil {
		appLog.Error("agenda print failed", err)
		writeError(w, http.StatusInternalServerError, "failed to print agenda")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="agenda.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// GET /api/sectors
func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	if s.dir == nil {
		writeError(w, http.StatusServiceUnavailable, "directory unavailable")
		return
	}
	sectors, err := s.dir.ListSectors(r.Context())
	if err != nil {
		appLog.Error("list sectors failed", err)
		writeError(w, http.StatusBadGateway, "backend request failed")
		return
	}
	if sectors == nil {
		sectors = []backend.Sector{}
	}
	writeJSON(w, http.StatusOK, sectors)
}

// GET /api/rooms
func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Rooms)
}

// GET /api/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if s.dir == nil {
		writeError(w, http.StatusServiceUnavailable, "directory unavailable")
		return
	}
	users, err := s.dir.ListUsers(r.Context())
	if err != nil {
		appLog.Error("list users failed", err)
		writeError(w, http.StatusBadGateway, "backend request failed")
		return
	}
	if users == nil {
		users = []backend.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("missing time")
	}
	if len(v) == len("2006-01-02") {
		return time.ParseInLocation("2006-01-02", v, s.loc)
	}
	return backend.ParseTimestamp(v, s.loc)
}

// parseRange reads from/to, defaulting to a week starting today.
func (s *Server) parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := s.now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if fromStr != "" {
		t, err := s.parseTime(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
		from = t
	}
	to := from.AddDate(0, 0, 7)
	if toStr != "" {
		t, err := s.parseTime(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
		to = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from, to, nil
}

// within keeps events whose window intersects [from, to). A zero-length
// event counts when its instant falls inside the range.
func within(evs []model.Event, from, to time.Time) []model.Event {
	out := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		if ev.Start.Before(to) && (from.Before(ev.End) || !ev.Start.Before(from)) {
			out = append(out, ev)
		}
	}
	return out
}
