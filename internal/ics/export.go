package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"kalender/internal/agenda"
	"kalender/internal/hijri"
	"kalender/internal/holiday"
	"kalender/internal/model"
	"kalender/internal/recurrence"
)

const (
	productID    = "-//kalender//division calendar//EN"
	uidDomain    = "@kalender"
	localLayout  = "20060102T150405"
	holidayCateg = "HOLIDAY"
)

// uidNamespace seeds the name-based UIDs of exported components, so the same
// occurrence always gets the same UID across exports.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:kalender:ics"))

// UID derives the stable UID for key.
func UID(key string) string {
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + uidDomain
}

// ExportOptions controls the calendar envelope.
type ExportOptions struct {
	Name     string
	Holidays []holiday.Day
	// Stamp is written as DTSTAMP on every component.
	Stamp time.Time
}

func newCalendar(opts ExportOptions) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	return cal
}

// Export renders an agenda (single events and expanded occurrences) plus
// holiday days as a VCALENDAR. Every occurrence becomes its own VEVENT.
func Export(items []agenda.Item, opts ExportOptions) (string, error) {
	cal := newCalendar(opts)

	for _, it := range items {
		start, err := time.Parse(agenda.TimeLayout, it.StartAt)
		if err != nil {
			return "", fmt.Errorf("item %d start: %w", it.ID, err)
		}
		end, err := time.Parse(agenda.TimeLayout, it.EndAt)
		if err != nil {
			return "", fmt.Errorf("item %d end: %w", it.ID, err)
		}

		key := it.OccurrenceKey
		if key == "" {
			key = "event-" + strconv.FormatInt(it.ID, 10)
		}
		ve := cal.AddEvent(UID(key))
		ve.SetDtStampTime(opts.Stamp)
		setText(ve, it.Title, it.Description, it.Location)
		setSpan(ve, start, end, it.AllDay)
		setCategories(ve, it.Divisions)
	}

	addHolidays(cal, opts)
	return cal.Serialize(), nil
}

// ExportSeries renders stored events without expanding them: recurring events
// carry an RRULE and start in their own wall clock.
func ExportSeries(events []model.Event, opts ExportOptions) (string, error) {
	cal := newCalendar(opts)

	for _, ev := range events {
		ve := cal.AddEvent(UID("series-" + strconv.FormatInt(ev.ID, 10)))
		ve.SetDtStampTime(opts.Stamp)
		setText(ve, ev.Title, ev.Description, ev.Location)
		setCategories(ve, ev.Divisions)

		if !ev.IsRecurring() {
			setSpan(ve, ev.Start, ev.End, ev.AllDay)
			continue
		}

		rule, err := recurrence.RRuleString(ev)
		if err != nil {
			return "", fmt.Errorf("event %d: %w", ev.ID, err)
		}
		if ev.AllDay || ev.Start.Location() == time.UTC {
			setSpan(ve, ev.Start, ev.End, ev.AllDay)
		} else {
			// The rule's weekdays are local to the anchor, so DTSTART must not be shifted to UTC.
			params := tzParams(ev.Start)
			ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(localLayout), params...)
			ve.SetProperty(ical.ComponentPropertyDtEnd, ev.End.Format(localLayout), tzParams(ev.End)...)
			if params == nil && ev.Recurrence.Until != nil {
				// A floating DTSTART needs a floating UNTIL (RFC 5545 3.3.10).
				rule = floatingUntil(rule, *ev.Recurrence.Until)
			}
		}
		ve.AddRrule(rule)
	}

	addHolidays(cal, opts)
	return cal.Serialize(), nil
}

// floatingUntil rewrites the UNTIL part of rule as the last second of until's
// civil day, without a zone.
func floatingUntil(rule string, until time.Time) string {
	parts := strings.Split(rule, ";")
	for i, p := range parts {
		if strings.HasPrefix(p, "UNTIL=") {
			last := time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, time.UTC)
			parts[i] = "UNTIL=" + last.Format(localLayout)
		}
	}
	return strings.Join(parts, ";")
}

func addHolidays(cal *ical.Calendar, opts ExportOptions) {
	for _, day := range opts.Holidays {
		label := hijri.FromTime(day.Date).String()
		for _, h := range day.Holidays {
			ve := cal.AddEvent(UID("holiday-" + h.Name + "-" + day.Date.Format("2006-01-02")))
			ve.SetDtStampTime(opts.Stamp)
			ve.SetSummary(h.Name)
			ve.SetDescription(label)
			ve.SetAllDayStartAt(day.Date)
			ve.SetAllDayEndAt(day.Date.AddDate(0, 0, 1))
			ve.SetProperty(ical.ComponentPropertyCategories, holidayCateg)
			ve.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
		}
	}
}

func setText(ve *ical.VEvent, title, description, location string) {
	ve.SetSummary(title)
	if description != "" {
		ve.SetDescription(description)
	}
	if location != "" {
		ve.SetLocation(location)
	}
}

// setSpan writes DTSTART/DTEND. All-day spans end exclusively on the day after
// the last covered day.
func setSpan(ve *ical.VEvent, start, end time.Time, allDay bool) {
	if !allDay {
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		return
	}
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	if last.Before(first) {
		last = first
	}
	ve.SetAllDayStartAt(first)
	ve.SetAllDayEndAt(last.AddDate(0, 0, 1))
}

func setCategories(ve *ical.VEvent, divisions []model.Division) {
	if len(divisions) == 0 {
		return
	}
	names := make([]string, len(divisions))
	for i, d := range divisions {
		names[i] = d.Name
	}
	ve.SetProperty(ical.ComponentPropertyCategories, strings.Join(names, ","))
}

// tzParams names the zone of t when it has an IANA name; fixed offsets are
// written as floating local time.
func tzParams(t time.Time) []ical.PropertyParameter {
	name := t.Location().String()
	if name == "" || name == "Local" || name == "UTC" || strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-") {
		return nil
	}
	return []ical.PropertyParameter{&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{name}}}
}
