package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"kalender/internal/model"
)

var (
	// ErrNotRecurring is returned when an RRULE is requested for a single event.
	ErrNotRecurring = errors.New("recurrence: event does not recur")
	// ErrUnsupportedRule is returned for RRULEs that have no weekly/monthly equivalent.
	ErrUnsupportedRule = errors.New("recurrence: unsupported rule")
)

// isoWeekdays maps ISO weekday numbers (1 = Monday) to rrule weekdays.
var isoWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ToRRule renders the event's recurrence as an RFC 5545 rule anchored at the
// event start. Evaluated over a window it yields the same instants as Expand
// (weeks start on Monday, until is inclusive up to the end of its day); only
// the iteration caps of Expand have no equivalent.
func ToRRule(ev model.Event) (*rrule.RRule, error) {
	if !ev.IsRecurring() {
		return nil, ErrNotRecurring
	}

	opt := rrule.ROption{
		Dtstart:  ev.Start.Truncate(time.Second),
		Wkst:     rrule.MO,
		Interval: ev.Recurrence.Pattern.Step(),
	}

	switch p := ev.Recurrence.Pattern.(type) {
	case model.Weekly:
		days := NormalizeDays(p.Days, 1, 7)
		if len(days) == 0 {
			return nil, fmt.Errorf("%w: weekly rule without days", ErrUnsupportedRule)
		}
		opt.Freq = rrule.WEEKLY
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, isoWeekdays[d-1])
		}
	case model.Monthly:
		days := NormalizeDays(p.MonthDays, 1, 31)
		if len(days) == 0 {
			return nil, fmt.Errorf("%w: monthly rule without days", ErrUnsupportedRule)
		}
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = days
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, ev.Recurrence.Pattern)
	}

	if u := ev.Recurrence.Until; u != nil {
		opt.Until = endOfDay(*u, ev.Start.Location())
	}

	return rrule.NewRRule(opt)
}

// RRuleString returns the RRULE value (without the "RRULE:" prefix and DTSTART).
func RRuleString(ev model.Event) (string, error) {
	r, err := ToRRule(ev)
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

// FromRRule maps an RRULE value onto the weekly/monthly model. Rules that
// cannot be represented (other frequencies, COUNT, BYSETPOS, nth weekdays,
// negative month days) return ErrUnsupportedRule.
//
// When the rule names no days the anchor's own weekday or day of month is used,
// as RFC 5545 does.
func FromRRule(raw string, anchor time.Time) (*model.Recurrence, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}
	if opt.Count > 0 || len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}

	interval := max(1, opt.Interval)
	rec := &model.Recurrence{}

	switch opt.Freq {
	case rrule.WEEKLY:
		days := make([]int, 0, len(opt.Byweekday))
		for _, wd := range opt.Byweekday {
			days = append(days, wd.Day()+1)
		}
		if len(days) == 0 {
			days = append(days, (int(anchor.Weekday())+6)%7+1)
		}
		rec.Pattern = model.Weekly{Interval: interval, Days: NormalizeDays(days, 1, 7)}
	case rrule.MONTHLY:
		if len(opt.Byweekday) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
		}
		days := opt.Bymonthday
		if len(days) == 0 {
			days = []int{anchor.Day()}
		}
		for _, d := range days {
			if d < 1 {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
			}
		}
		rec.Pattern = model.Monthly{Interval: interval, MonthDays: NormalizeDays(days, 1, 31)}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}

	if !opt.Until.IsZero() {
		u := opt.Until.In(anchor.Location())
		day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, anchor.Location())
		rec.Until = &day
	}

	return rec, nil
}
