package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"eventdesk/internal/conflict"
	"eventdesk/internal/model"
)

// Clash is an event together with the meetings already holding its room.
type Clash struct {
	Event model.Event
	With  []model.Event
}

// FindClashes lists, in snapshot order, every in-person meeting whose room
// is also held by another meeting during its window.
func FindClashes(events []model.Event) []Clash {
	var out []Clash
	for _, ev := range events {
		if !ev.Kind.MeetingClass() || ev.LocationMode != model.InPerson || ev.Room == model.NoRoom {
			continue
		}
		with := conflict.ListRoomConflicts(events, ev.Window(), ev.Room, ev.ID)
		if len(with) > 0 {
			out = append(out, Clash{Event: ev, With: with})
		}
	}
	return out
}

var funcs = template.FuncMap{
	"when": func(t time.Time) string { return t.Format("Mon 02 Jan 15:04") },
	"hour": func(t time.Time) string { return t.Format("15:04") },
	"room": func(ev model.Event) string {
		if ev.LocationMode != model.InPerson {
			return "virtual"
		}
		if ev.Room == model.NoRoom {
			return "-"
		}
		return string(ev.Room)
	},
}

var agendaTmpl = template.Must(template.New("agenda").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 11pt; margin: 1.5cm; }
h1 { font-size: 16pt; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ccc; padding: 4px 6px; text-align: left; }
.clash { color: #a40000; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{len .Events}} events, generated {{when .Generated}}</p>
<table>
<tr><th>When</th><th>Title</th><th>Kind</th><th>Room</th><th>Author</th></tr>
{{range .Events}}<tr><td>{{when .Start}} - {{hour .End}}</td><td>{{.Title}}</td><td>{{.Kind}}</td><td>{{room .}}</td><td>{{.AuthorName}}</td></tr>
{{end}}</table>
{{if .Clashes}}<h2 class="clash">Room conflicts</h2>
<ul>
{{range .Clashes}}<li class="clash">{{.Event.Title}} ({{when .Event.Start}}, {{.Event.Room}}) overlaps:
<ul>{{range .With}}<li>{{.Title}} {{when .Start}} - {{hour .End}}{{if .AuthorName}} by {{.AuthorName}}{{end}}</li>{{end}}</ul>
</li>
{{end}}</ul>
{{end}}</body>
</html>
`))

// RenderAgendaHTML renders the agenda sheet printed by PrintPDF.
func RenderAgendaHTML(title string, events []model.Event, clashes []Clash, generated time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := agendaTmpl.Execute(&buf, struct {
		Title     string
		Generated time.Time
		Events    []model.Event
		Clashes   []Clash
	}{title, generated, events, clashes})
	if err != nil {
		return nil, fmt.Errorf("export: render agenda: %w", err)
	}
	return buf.Bytes(), nil
}
