package model

import (
	"strconv"
	"time"
)

// Division is an organizational unit that events and users can be tagged with.
type Division struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Participant is a user attached to an event, with their home division if any.
type Participant struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Division *Division `json:"division"`
}

// Event represents a stored calendar event before recurrence expansion.
// Start and End keep the UTC offset they were stored with; the expander
// reuses that wall clock verbatim for every generated occurrence.
type Event struct {
	ID          int64
	Title       string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Recurrence is nil for single events.
	Recurrence *Recurrence

	Divisions    []Division
	Participants []Participant

	// SourceUID is the iCalendar UID for events imported from a feed.
	SourceUID string
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e Event) IsRecurring() bool {
	return e.Recurrence != nil && e.Recurrence.Pattern != nil
}

// RecurrenceType is the persisted tag of a recurrence pattern.
type RecurrenceType string

const (
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// Pattern is the tagged union of recurrence variants: Weekly or Monthly.
type Pattern interface {
	Type() RecurrenceType
	// Step is the normalized interval (always >= 1).
	Step() int
}

// Weekly repeats on ISO weekdays (1 = Monday ... 7 = Sunday) every Interval weeks.
type Weekly struct {
	Interval int
	Days     []int
}

func (Weekly) Type() RecurrenceType { return RecurrenceWeekly }

func (w Weekly) Step() int { return normalizeInterval(w.Interval) }

// Monthly repeats on days of the month every Interval months.
type Monthly struct {
	Interval  int
	MonthDays []int
}

func (Monthly) Type() RecurrenceType { return RecurrenceMonthly }

func (m Monthly) Step() int { return normalizeInterval(m.Interval) }

func normalizeInterval(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Recurrence couples a pattern with an optional inclusive end date.
type Recurrence struct {
	Pattern Pattern
	// Until is a calendar date; only its year/month/day are significant.
	Until *time.Time
}

// Occurrence is a single concrete instance of a recurring event.
type Occurrence struct {
	EventID int64
	Start   time.Time
	End     time.Time
	// Key identifies the occurrence as "{event id}-{start unix seconds}".
	Key string
}

// OccurrenceKey builds the deterministic key of an occurrence.
func OccurrenceKey(eventID int64, start time.Time) string {
	return strconv.FormatInt(eventID, 10) + "-" + strconv.FormatInt(start.Unix(), 10)
}

// CalendarType selects which calendar(s) a holiday is defined in.
type CalendarType string

const (
	CalendarGregorian CalendarType = "gregorian"
	CalendarHijri     CalendarType = "hijri"
	CalendarBoth      CalendarType = "both"
)

// Holiday is a named date in the Gregorian calendar, the Hijri calendar or both.
// A nil year means the holiday repeats every year.
type Holiday struct {
	ID           int64        `json:"id" yaml:"-"`
	Name         string       `json:"name" yaml:"name"`
	CalendarType CalendarType `json:"calendar_type" yaml:"calendar_type"`

	GregorianMonth *int `json:"gregorian_month" yaml:"gregorian_month,omitempty"`
	GregorianDay   *int `json:"gregorian_day" yaml:"gregorian_day,omitempty"`
	GregorianYear  *int `json:"gregorian_year" yaml:"gregorian_year,omitempty"`

	HijriMonth *int `json:"hijri_month" yaml:"hijri_month,omitempty"`
	HijriDay   *int `json:"hijri_day" yaml:"hijri_day,omitempty"`
	HijriYear  *int `json:"hijri_year" yaml:"hijri_year,omitempty"`
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}

// IntValue safely dereferences an int pointer, returning 0 if nil.
func IntValue(i *int) int {
	if i != nil {
		return *i
	}
	return 0
}
