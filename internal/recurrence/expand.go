// Package recurrence expands weekly and monthly recurring events into
// concrete occurrences inside a query window.
package recurrence

import (
	"time"

	"kalender/internal/model"
)

const (
	// MaxWeeklyIterations bounds weekly expansion to roughly ten years.
	MaxWeeklyIterations = 520
	// MaxMonthlyIterations bounds monthly expansion to twenty years.
	MaxMonthlyIterations = 240

	minDuration = 60 * time.Second
)

// window holds the day-granular bounds of one expansion, in the anchor's location.
type window struct {
	start time.Time // start of the first day
	end   time.Time // end of the last day
	until time.Time // min(end of recurrence until day, end)
}

type expander struct {
	ev        model.Event
	anchorDay time.Time
	dur       time.Duration
	w         window
}

// Expand returns the occurrences of a recurring event whose date falls inside
// [rangeStart, rangeEnd]. Only the civil dates of the range bounds matter; they
// are read in the event's own location. A reversed range is swapped.
//
// Cycles are aligned on the anchor (the event start), not on the window, so any
// sub-window yields exactly the matching subset of a wider query. Each occurrence
// reuses the anchor's wall clock and the event's duration.
//
// Non-recurring events and empty day sets produce an empty, non-nil slice.
func Expand(ev model.Event, rangeStart, rangeEnd time.Time) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	if !ev.IsRecurring() {
		return out
	}

	if rangeEnd.Before(rangeStart) {
		rangeStart, rangeEnd = rangeEnd, rangeStart
	}

	loc := ev.Start.Location()
	w := window{
		start: startOfDay(rangeStart, loc),
		end:   endOfDay(rangeEnd, loc),
	}
	w.until = w.end
	if u := ev.Recurrence.Until; u != nil {
		if ue := endOfDay(*u, loc); ue.Before(w.until) {
			w.until = ue
		}
	}

	e := expander{
		ev:        ev,
		anchorDay: startOfDay(ev.Start, loc),
		dur:       occurrenceDuration(ev),
		w:         w,
	}

	switch p := ev.Recurrence.Pattern.(type) {
	case model.Weekly:
		return e.weekly(out, p)
	case model.Monthly:
		return e.monthly(out, p)
	default:
		return out
	}
}

func (e expander) weekly(out []model.Occurrence, p model.Weekly) []model.Occurrence {
	days := NormalizeDays(p.Days, 1, 7)
	if len(days) == 0 {
		return out
	}
	interval := p.Step()

	anchorWeek := mondayOf(e.anchorDay)
	week := mondayOf(e.w.start)
	if week.Before(anchorWeek) {
		week = anchorWeek
	}
	if rem := mod(daysBetween(anchorWeek, week)/7, interval); rem != 0 {
		week = week.AddDate(0, 0, 7*(interval-rem))
	}

	for i := 0; i < MaxWeeklyIterations && !week.After(e.w.until); i++ {
		for _, d := range days {
			if occ, ok := e.occurrence(week.AddDate(0, 0, d-1)); ok {
				out = append(out, occ)
			}
		}
		week = week.AddDate(0, 0, 7*interval)
	}
	return out
}

func (e expander) monthly(out []model.Occurrence, p model.Monthly) []model.Occurrence {
	days := NormalizeDays(p.MonthDays, 1, 31)
	if len(days) == 0 {
		return out
	}
	interval := p.Step()

	anchorMonth := firstOfMonth(e.anchorDay)
	cursor := firstOfMonth(e.w.start)
	if cursor.Before(anchorMonth) {
		cursor = anchorMonth
	}
	if rem := mod(monthsBetween(anchorMonth, cursor), interval); rem != 0 {
		cursor = cursor.AddDate(0, interval-rem, 0)
	}

	for i := 0; i < MaxMonthlyIterations && !cursor.After(e.w.until); i++ {
		n := daysIn(cursor)
		for _, md := range days {
			if md > n {
				continue
			}
			day := time.Date(cursor.Year(), cursor.Month(), md, 0, 0, 0, 0, cursor.Location())
			if occ, ok := e.occurrence(day); ok {
				out = append(out, occ)
			}
		}
		cursor = cursor.AddDate(0, interval, 0)
	}
	return out
}

// occurrence builds the occurrence on day (a local midnight) unless the day
// precedes the anchor or lies outside the window.
func (e expander) occurrence(day time.Time) (model.Occurrence, bool) {
	if day.Before(e.anchorDay) {
		return model.Occurrence{}, false
	}
	if day.Before(e.w.start) || day.After(e.w.end) || day.After(e.w.until) {
		return model.Occurrence{}, false
	}

	a := e.ev.Start
	start := time.Date(day.Year(), day.Month(), day.Day(), a.Hour(), a.Minute(), a.Second(), 0, day.Location())
	return model.Occurrence{
		EventID: e.ev.ID,
		Start:   start,
		End:     start.Add(e.dur),
		Key:     model.OccurrenceKey(e.ev.ID, start),
	}, true
}

// occurrenceDuration is |end - start| at second precision, never below a minute
// when the event has no length at all.
func occurrenceDuration(ev model.Event) time.Duration {
	secs := ev.End.Unix() - ev.Start.Unix()
	if secs < 0 {
		secs = -secs
	}
	if secs == 0 {
		return minDuration
	}
	return time.Duration(secs) * time.Second
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, loc)
}

func mondayOf(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func firstOfMonth(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween counts civil days from a to b, ignoring offsets and DST.
func daysBetween(a, b time.Time) int {
	ca := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	cb := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(cb.Sub(ca).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
