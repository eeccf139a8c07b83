package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kalender/internal/agenda"
	"kalender/internal/hijri"
	"kalender/internal/holiday"
	"kalender/internal/ics"
	appLog "kalender/internal/log"
	"kalender/internal/model"
)

const (
	dateLayout = "2006-01-02"

	// maxExportYears bounds the ICS export window, matching the weekly expansion horizon.
	maxExportYears = 10
)

var errBadRequest = errors.New("bad request")

// parseQuery reads start, end, q and the repeatable division parameter.
// Dates are civil dates in the configured timezone.
func (s *Server) parseQuery(v url.Values) (agenda.Query, error) {
	var q agenda.Query

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		raw := strings.TrimSpace(v.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, raw, s.loc)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, p.name)
		}
		*p.dst = &t
	}

	q.Text = strings.TrimSpace(v.Get("q"))

	for _, raw := range v["division"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return q, fmt.Errorf("%w: division must be a positive integer", errBadRequest)
			}
			q.DivisionIDs = append(q.DivisionIDs, id)
		}
	}
	return q, nil
}

// handleEvents returns single events and expanded occurrences.
//
// GET /api/events?start=YYYY-MM-DD&end=YYYY-MM-DD&q=text&division=1&division=2
//
// Recurring events are expanded only when both start and end are given.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := s.parseQuery(values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := values.Encode()
	now := s.deps.Now()

	s.eventsMu.RLock()
	entry, ok := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, dataResponse[agenda.Item]{Data: entry.items})
		return
	}

	items, err := s.deps.Agenda.List(r.Context(), q)
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	s.eventsMu.Lock()
	for k, e := range s.eventsCache {
		if now.Sub(e.updatedAt) >= eventsCacheTTL {
			delete(s.eventsCache, k)
		}
	}
	s.eventsCache[key] = eventsCacheEntry{items: items, updatedAt: now}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, dataResponse[agenda.Item]{Data: items})
}

// handleEventsICS exports the agenda as text/calendar. Without dates the
// current month is exported; series=1 exports stored events with RRULEs.
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := s.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.deps.Now().In(s.loc)
	if q.Start == nil || q.End == nil {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
		last := first.AddDate(0, 1, -1)
		q.Start, q.End = &first, &last
	}
	clampExportWindow(&q)

	holidays, err := s.deps.Holidays.ListHolidays(ctx)
	if err != nil {
		appLog.Error("api ics: list holidays failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list holidays")
		return
	}
	w2 := agenda.NewWindow(*q.Start, *q.End)
	opts := ics.ExportOptions{
		Name:     "Kalender",
		Holidays: holiday.InRange(w2.Start, w2.End, holidays),
		Stamp:    now,
	}

	var body string
	if r.URL.Query().Get("series") == "1" {
		events, lerr := s.deps.Events.SingleEvents(ctx, agenda.Filter{Text: q.Text, DivisionIDs: q.DivisionIDs})
		if lerr != nil {
			err = lerr
		} else {
			body, err = ics.ExportSeries(events, opts)
		}
	} else {
		items, lerr := s.deps.Agenda.List(ctx, q)
		if lerr != nil {
			err = lerr
		} else {
			body, err = ics.Export(items, opts)
		}
	}
	if err != nil {
		appLog.Error("api ics: export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kalender.ics"`)
	_, _ = w.Write([]byte(body))
}

// clampExportWindow orders q's dates and limits the span to
// maxExportYears after the first day.
func clampExportWindow(q *agenda.Query) {
	start, end := *q.Start, *q.End
	if end.Before(start) {
		start, end = end, start
	}
	if limit := start.AddDate(maxExportYears, 0, -1); end.After(limit) {
		appLog.Warn("api ics: window clamped", "start", start.Format(dateLayout),
			"requested_end", end.Format(dateLayout), "end", limit.Format(dateLayout))
		end = limit
	}
	q.Start, q.End = &start, &end
}

// holidayDTO adds the human readable description to a stored holiday.
type holidayDTO struct {
	model.Holiday
	Description string `json:"description"`
}

// handleHolidays lists all holidays, or those falling on ?date=YYYY-MM-DD.
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := s.deps.Holidays.ListHolidays(r.Context())
	if err != nil {
		appLog.Error("api holidays: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list holidays")
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		date, err := time.ParseInLocation(dateLayout, raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		holidays = holiday.ForDate(date, holidays)
	}

	out := make([]holidayDTO, len(holidays))
	for i, h := range holidays {
		out[i] = holidayDTO{Holiday: h, Description: holiday.Describe(h)}
	}
	writeJSON(w, http.StatusOK, dataResponse[holidayDTO]{Data: out})
}

type hijriDate struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	DaysInMonth int    `json:"days_in_month"`
	MonthName   string `json:"month_name"`
}

type hijriRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type hijriResponse struct {
	Gregorian  string     `json:"gregorian"`
	Hijri      hijriDate  `json:"hijri"`
	Label      string     `json:"label"`
	MonthRange hijriRange `json:"month_range"`
}

// handleHijri converts ?date=YYYY-MM-DD (default today) to the Hijri calendar.
func (s *Server) handleHijri(w http.ResponseWriter, r *http.Request) {
	date := s.deps.Now().In(s.loc)
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	c := hijri.FromTime(date)
	rng := hijri.MonthRange(date)
	writeJSON(w, http.StatusOK, hijriResponse{
		Gregorian: date.Format(dateLayout),
		Hijri: hijriDate{
			Year:        c.Year,
			Month:       c.Month,
			Day:         c.Day,
			DaysInMonth: c.DaysInMonth,
			MonthName:   hijri.MonthName(c.Month),
		},
		Label: c.String(),
		MonthRange: hijriRange{
			Start: rng.Start.Format(dateLayout),
			End:   rng.End.Format(dateLayout),
		},
	})
}
