package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "kalender/internal/log"
	"kalender/internal/model"
	"kalender/internal/recurrence"
)

// ErrEmptyBody is returned when an ICS payload has no content.
var ErrEmptyBody = errors.New("ics: empty body")

// Source is a single ICS subscription.
type Source struct {
	// ID prefixes the UIDs of imported events so feeds never collide.
	ID  string
	URL string
	// Division, when set, is the division imported events are tagged with.
	Division string
}

// SourceUID is the key an imported VEVENT is stored under.
func SourceUID(sourceID, uid string) string {
	return sourceID + ":" + uid
}

// Parse reads an ICS payload into events ready to be stored.
//
// RRULEs with a weekly or monthly equivalent become recurrences; anything
// else is kept as a single event at its first instance. Overridden instances
// (RECURRENCE-ID) and EXDATEs have no stored form and are skipped.
func Parse(src Source, body []byte) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]model.Event, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		if ve.GetProperty("RECURRENCE-ID") != nil {
			skipped++
			continue
		}
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", err.Error())
			skipped++
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (model.Event, error) {
	var ev model.Event

	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return ev, errors.New("missing UID")
	}
	ev.SourceUID = SourceUID(src.ID, uid)
	ev.Title = unescapeText(propValue(ve, ical.ComponentPropertySummary))
	ev.Description = unescapeText(propValue(ve, ical.ComponentPropertyDescription))
	ev.Location = unescapeText(propValue(ve, ical.ComponentPropertyLocation))
	if ev.Title == "" {
		ev.Title = "(untitled)"
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	var err error
	if ev.AllDay {
		ev.Start, err = ve.GetAllDayStartAt()
	} else {
		ev.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return ev, err
	}

	end, endErr := eventEnd(ve, ev.AllDay)
	switch {
	case endErr == nil && end.After(ev.Start):
		ev.End = end
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}
	if ev.AllDay {
		// DTEND of an all-day event is exclusive; store the last second of the final day.
		ev.End = ev.End.Add(-time.Second)
	}

	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		rec, err := recurrence.FromRRule(raw, ev.Start)
		if err != nil {
			appLog.Warn("ics rrule not supported; importing first instance only",
				"id", src.ID, "uid", uid, "rrule", raw)
		} else {
			ev.Recurrence = rec
		}
	}
	if len(ve.GetProperties(ical.ComponentPropertyExdate)) > 0 {
		appLog.Debug("ics exdate ignored", "id", src.ID, "uid", uid)
	}

	if src.Division != "" {
		ev.Divisions = []model.Division{{Name: src.Division}}
	}
	return ev, nil
}

func eventEnd(ve *ical.VEvent, allDay bool) (time.Time, error) {
	if ve.GetProperty(ical.ComponentPropertyDtEnd) == nil {
		return time.Time{}, errors.New("missing DTEND")
	}
	if allDay {
		return ve.GetAllDayEndAt()
	}
	return ve.GetEndAt()
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// isDateValue reports whether a DTSTART carries a date without a time.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

// redactURL keeps only the scheme and host of a subscription URL for logging;
// private feed URLs carry their token in the path or query.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	host := u[:i+3]
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return host + rest + redactedSuffix
}
