package hijri

import (
	"fmt"
	"time"
)

// Converted is a Hijri date together with the length of its month.
type Converted struct {
	Date
	DaysInMonth int `json:"days_in_month"`
}

// FromTime converts the civil date of t (in t's own location) to Hijri.
func FromTime(t time.Time) Converted {
	d := JulianDayToHijri(GregorianToJulianDay(t.Year(), int(t.Month()), t.Day()))
	return Converted{Date: d, DaysInMonth: MonthLength(d.Year, d.Month)}
}

// ToTime returns local midnight, in loc, of the Gregorian day matching a Hijri date.
func ToTime(year, month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	g := JulianDayToGregorian(HijriToJulianDay(year, month, day))
	return time.Date(g.Year, time.Month(g.Month), g.Day, 0, 0, 0, 0, loc)
}

// FormatMonth renders the Hijri month containing t, e.g. "Ramadan 1446 H".
func FormatMonth(t time.Time) string {
	c := FromTime(t)
	return fmt.Sprintf("%s %d H", MonthName(c.Month), c.Year)
}

// Range is the Gregorian span of one Hijri month.
type Range struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HijriYear   int       `json:"hijri_year"`
	HijriMonth  int       `json:"hijri_month"`
	DaysInMonth int       `json:"days_in_month"`
}

// MonthRange returns the first and last Gregorian day of the Hijri month that
// contains t. End is the last nanosecond of its day.
func MonthRange(t time.Time) Range {
	c := FromTime(t)
	loc := t.Location()
	last := ToTime(c.Year, c.Month, c.DaysInMonth, loc)
	return Range{
		Start:       ToTime(c.Year, c.Month, 1, loc),
		End:         time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 999999999, loc),
		HijriYear:   c.Year,
		HijriMonth:  c.Month,
		DaysInMonth: c.DaysInMonth,
	}
}
