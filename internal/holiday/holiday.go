// Package holiday decides whether Gregorian and Hijri holiday definitions
// fall on a given date.
package holiday

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kalender/internal/hijri"
	"kalender/internal/model"
)

var gregorianMonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Matches reports whether h falls on the civil date of date.
//
// The Gregorian and Hijri sides are checked independently and OR-ed: a
// holiday of type "both" matches when either of its dates matches.
func Matches(date time.Time, h model.Holiday) bool {
	return matchesGregorian(date, h) || matchesHijri(date, h)
}

func matchesGregorian(date time.Time, h model.Holiday) bool {
	if h.GregorianMonth == nil || h.GregorianDay == nil {
		return false
	}
	if *h.GregorianMonth != int(date.Month()) || *h.GregorianDay != date.Day() {
		return false
	}
	return h.GregorianYear == nil || *h.GregorianYear == date.Year()
}

func matchesHijri(date time.Time, h model.Holiday) bool {
	if h.HijriMonth == nil || h.HijriDay == nil {
		return false
	}
	d := hijri.FromTime(date)
	if *h.HijriMonth != d.Month || *h.HijriDay != d.Day {
		return false
	}
	return h.HijriYear == nil || *h.HijriYear == d.Year
}

// ForDate returns the holidays that fall on date, in input order.
func ForDate(date time.Time, holidays []model.Holiday) []model.Holiday {
	out := make([]model.Holiday, 0)
	for _, h := range holidays {
		if Matches(date, h) {
			out = append(out, h)
		}
	}
	return out
}

// Day is one calendar day with the holidays falling on it.
type Day struct {
	Date     time.Time
	Holidays []model.Holiday
}

// InRange walks every civil day in [from, to] (inclusive, in from's location)
// and returns the days that carry at least one holiday.
func InRange(from, to time.Time, holidays []model.Holiday) []Day {
	loc := from.Location()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	var out []Day
	for !day.After(last) {
		if hs := ForDate(day, holidays); len(hs) > 0 {
			out = append(out, Day{Date: day, Holidays: hs})
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// Validate applies the rules a holiday must satisfy before it is stored.
// All violations are reported together.
func Validate(h model.Holiday) error {
	var errs []error

	if strings.TrimSpace(h.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}

	switch h.CalendarType {
	case model.CalendarGregorian, model.CalendarHijri, model.CalendarBoth:
	default:
		errs = append(errs, fmt.Errorf("calendar_type %q is not one of gregorian, hijri, both", h.CalendarType))
	}

	errs = append(errs,
		between("gregorian_month", h.GregorianMonth, 1, 12),
		between("gregorian_day", h.GregorianDay, 1, 31),
		between("gregorian_year", h.GregorianYear, 1900, 2100),
		between("hijri_month", h.HijriMonth, 1, 12),
		between("hijri_day", h.HijriDay, 1, 30),
		between("hijri_year", h.HijriYear, 1300, 1700),
	)

	hasGregorian := h.GregorianMonth != nil && h.GregorianDay != nil
	hasHijri := h.HijriMonth != nil && h.HijriDay != nil

	if (h.CalendarType == model.CalendarGregorian || h.CalendarType == model.CalendarBoth) && !hasGregorian {
		errs = append(errs, errors.New("gregorian month and day are required"))
	}
	if (h.CalendarType == model.CalendarHijri || h.CalendarType == model.CalendarBoth) && !hasHijri {
		errs = append(errs, errors.New("hijri month and day are required"))
	}
	if !hasGregorian && !hasHijri {
		errs = append(errs, errors.New("at least one of the gregorian or hijri dates is required"))
	}

	return errors.Join(errs...)
}

func between(field string, v *int, lo, hi int) error {
	if v == nil || (*v >= lo && *v <= hi) {
		return nil
	}
	return fmt.Errorf("%s must be between %d and %d, got %d", field, lo, hi, *v)
}

// Describe renders a human readable summary of both sides of a holiday,
// e.g. "01 January (Gregorian) (annual) | 1 Ramadan (Hijri) (annual)".
func Describe(h model.Holiday) string {
	parts := make([]string, 0, 2)

	if h.GregorianMonth != nil && h.GregorianDay != nil {
		name := fmt.Sprintf("Month %d", *h.GregorianMonth)
		if m := *h.GregorianMonth; m >= 1 && m <= 12 {
			name = gregorianMonthNames[m-1]
		}
		s := fmt.Sprintf("%02d %s", *h.GregorianDay, name)
		if h.GregorianYear != nil {
			s += fmt.Sprintf(" %d (Gregorian)", *h.GregorianYear)
		} else {
			s += " (Gregorian) (annual)"
		}
		parts = append(parts, s)
	}

	if h.HijriMonth != nil && h.HijriDay != nil {
		s := fmt.Sprintf("%d %s", *h.HijriDay, hijri.MonthName(*h.HijriMonth))
		if h.HijriYear != nil {
			s += fmt.Sprintf(" %d H (Hijri)", *h.HijriYear)
		} else {
			s += " (Hijri) (annual)"
		}
		parts = append(parts, s)
	}

	return strings.Join(parts, " | ")
}
