package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kalender/internal/agenda"
	"kalender/internal/hijri"
	"kalender/internal/holiday"
	appLog "kalender/internal/log"
)

const monthLayout = "2006-01"

//go:embed templates/calendar.html
var templatesFS embed.FS

var calendarTmpl = template.Must(template.ParseFS(templatesFS, "templates/calendar.html"))

var weekdayNames = []string{"Sen", "Sel", "Rab", "Kam", "Jum", "Sab", "Min"}

type calendarEvent struct {
	Time  string
	Title string
}

type calendarDay struct {
	Day      int
	Hijri    string
	InMonth  bool
	Today    bool
	Holidays []string
	Events   []calendarEvent
}

type calendarPage struct {
	Title      string
	Month      string
	Prev       string
	Next       string
	HijriLabel string
	Weekdays   []string
	Weeks      [][]calendarDay
}

// handleCalendar renders a Monday-first month grid for ?month=YYYY-MM
// (default: current month). The snapshot capture waits for data-ready.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now().In(s.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		m, err := time.ParseInLocation(monthLayout, raw, s.loc)
		if err != nil {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		first = m
	}

	q, err := s.parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := s.buildCalendar(r, first, now, q)
	if err != nil {
		appLog.Error("calendar: build failed", err, "month", first.Format(monthLayout))
		http.Error(w, "failed to render calendar", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("calendar: render failed", err)
		http.Error(w, "failed to render calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) buildCalendar(r *http.Request, first, now time.Time, q agenda.Query) (calendarPage, error) {
	last := first.AddDate(0, 1, -1)
	// Monday on or before the 1st, Sunday on or after the last day.
	gridStart := first.AddDate(0, 0, -isoWeekdayOffset(first))
	gridEnd := last.AddDate(0, 0, 6-isoWeekdayOffset(last))

	q.Start, q.End = &gridStart, &gridEnd
	items, err := s.deps.Agenda.List(r.Context(), q)
	if err != nil {
		return calendarPage{}, fmt.Errorf("list agenda: %w", err)
	}
	stored, err := s.deps.Holidays.ListHolidays(r.Context())
	if err != nil {
		return calendarPage{}, fmt.Errorf("list holidays: %w", err)
	}

	holidays := make(map[string][]string)
	for _, d := range holiday.InRange(gridStart, gridEnd, stored) {
		key := d.Date.Format(dateLayout)
		for _, h := range d.Holidays {
			holidays[key] = append(holidays[key], h.Name)
		}
	}
	events := s.eventsByDay(items, gridStart, gridEnd)

	page := calendarPage{
		Title:      first.Format("January 2006"),
		Month:      first.Format(monthLayout),
		Prev:       first.AddDate(0, -1, 0).Format(monthLayout),
		Next:       first.AddDate(0, 1, 0).Format(monthLayout),
		HijriLabel: hijriSpan(first, last),
		Weekdays:   weekdayNames,
	}
	today := now.Format(dateLayout)

	var week []calendarDay
	for day := gridStart; !day.After(gridEnd); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		c := hijri.FromTime(day)
		week = append(week, calendarDay{
			Day:      day.Day(),
			Hijri:    strconv.Itoa(c.Day) + " " + hijri.MonthName(c.Month),
			InMonth:  day.Month() == first.Month(),
			Today:    key == today,
			Holidays: holidays[key],
			Events:   events[key],
		})
		if len(week) == 7 {
			page.Weeks = append(page.Weeks, week)
			week = nil
		}
	}
	return page, nil
}

// eventsByDay places each item on every civil day it touches within the grid.
func (s *Server) eventsByDay(items []agenda.Item, gridStart, gridEnd time.Time) map[string][]calendarEvent {
	out := make(map[string][]calendarEvent)
	for _, it := range items {
		start, err := time.Parse(agenda.TimeLayout, it.StartAt)
		if err != nil {
			appLog.Warn("calendar: bad start time", "id", it.ID, "start_at", it.StartAt)
			continue
		}
		end, err := time.Parse(agenda.TimeLayout, it.EndAt)
		if err != nil || end.Before(start) {
			end = start
		}
		start, end = start.In(s.loc), end.In(s.loc)
		if end.After(start) {
			// An end at midnight does not touch the following day.
			end = end.Add(-time.Nanosecond)
		}

		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc)
		if day.Before(gridStart) {
			day = gridStart
		}
		for ; !day.After(end) && !day.After(gridEnd); day = day.AddDate(0, 0, 1) {
			ev := calendarEvent{Title: it.Title}
			if !it.AllDay && sameDay(day, start) {
				ev.Time = start.Format("15:04")
			}
			key := day.Format(dateLayout)
			out[key] = append(out[key], ev)
		}
	}
	return out
}

// isoWeekdayOffset is the number of days since Monday.
func isoWeekdayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// hijriSpan labels the Hijri month(s) a Gregorian month overlaps.
func hijriSpan(first, last time.Time) string {
	from, to := hijri.FormatMonth(first), hijri.FormatMonth(last)
	if from == to {
		return from
	}
	return from + " / " + to
}
