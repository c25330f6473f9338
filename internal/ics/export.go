package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"eventdesk/internal/model"
)

// ExportCalendar renders events as an iCalendar document that staff
// calendars can subscribe to. Feed bookings are left out; they already
// live in their own calendars.
func ExportCalendar(name string, events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventdesk//events//EN")
	cal.SetXWRCalName(name)

	for _, ev := range events {
		if IsFeedEvent(ev.ID) {
			continue
		}
		ve := cal.AddEvent(string(ev.ID) + "@eventdesk")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		ve.AddProperty(ical.ComponentProperty("CATEGORIES"), string(ev.Kind))
		if ev.LocationMode == model.InPerson && ev.Room != model.NoRoom {
			ve.SetLocation(string(ev.Room))
		}
		if desc := describe(ev); desc != "" {
			ve.SetDescription(desc)
		}
	}

	return cal.Serialize()
}

func describe(ev model.Event) string {
	switch {
	case ev.AuthorName != "" && ev.Sector != "":
		return ev.AuthorName + " (" + ev.Sector + ")"
	case ev.AuthorName != "":
		return ev.AuthorName
	default:
		return ev.Sector
	}
}
