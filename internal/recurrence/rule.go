package recurrence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"kalender/internal/model"
)

var (
	// ErrUnknownType is returned for a recurrence_type other than weekly or monthly.
	ErrUnknownType = errors.New("recurrence: unknown type")
	// ErrInvalidRule is returned when the persisted rule JSON cannot be read.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
)

// looseInt accepts both JSON numbers and numeric strings, since rules written
// by older form handlers store days as strings.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return err
		}
		v = int(f)
	}
	*n = looseInt(v)
	return nil
}

// rule is the persisted shape of recurrence_rule.
type rule struct {
	Interval  looseInt   `json:"interval"`
	Days      []looseInt `json:"days,omitempty"`
	MonthDays []looseInt `json:"month_days,omitempty"`
}

func ints(in []looseInt) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

// Decode turns the persisted recurrence columns into the tagged union.
// An empty recurrenceType means the event does not recur and yields nil.
//
// Interval is normalized to at least 1 and day sets are filtered to their
// valid range, deduplicated and sorted. An empty day set is kept: it decodes
// fine and simply expands to nothing.
func Decode(recurrenceType string, raw []byte, until *time.Time) (*model.Recurrence, error) {
	if recurrenceType == "" {
		return nil, nil
	}

	var r rule
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, recurrenceType, err)
		}
	}

	interval := max(1, int(r.Interval))

	var p model.Pattern
	switch model.RecurrenceType(recurrenceType) {
	case model.RecurrenceWeekly:
		p = model.Weekly{Interval: interval, Days: NormalizeDays(ints(r.Days), 1, 7)}
	case model.RecurrenceMonthly:
		p = model.Monthly{Interval: interval, MonthDays: NormalizeDays(ints(r.MonthDays), 1, 31)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, recurrenceType)
	}

	return &model.Recurrence{Pattern: p, Until: until}, nil
}

// Encode is the inverse of Decode. A nil recurrence encodes to empty values.
func Encode(rec *model.Recurrence) (string, []byte, error) {
	if rec == nil || rec.Pattern == nil {
		return "", nil, nil
	}

	var r struct {
		Interval  int   `json:"interval"`
		Days      []int `json:"days,omitempty"`
		MonthDays []int `json:"month_days,omitempty"`
	}
	r.Interval = rec.Pattern.Step()

	switch p := rec.Pattern.(type) {
	case model.Weekly:
		r.Days = NormalizeDays(p.Days, 1, 7)
	case model.Monthly:
		r.MonthDays = NormalizeDays(p.MonthDays, 1, 31)
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownType, rec.Pattern)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return "", nil, err
	}
	return string(rec.Pattern.Type()), raw, nil
}

// NormalizeDays keeps values in [lo, hi], drops duplicates and sorts them.
func NormalizeDays(days []int, lo, hi int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d >= lo && d <= hi {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
