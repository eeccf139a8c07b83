package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalender/internal/model"
)

func TestToRRule_AgreesWithExpand(t *testing.T) {
	until := day(2025, 11, 20)
	untilWeekly := model.Event{
		ID:    3,
		Start: at(2025, 2, 4, 7, 45),
		End:   at(2025, 2, 4, 8, 15),
		Recurrence: &model.Recurrence{
			Pattern: model.Weekly{Interval: 2, Days: []int{2, 4, 6}},
			Until:   &until,
		},
	}

	tests := []struct {
		name     string
		ev       model.Event
		from, to time.Time
	}{
		{name: "weekly", ev: weeklyEvent(at(2025, 1, 6, 9, 0), time.Hour, 1, 1, 3), from: day(2025, 1, 1), to: day(2025, 3, 31)},
		{name: "weekly every other week with until", ev: untilWeekly, from: day(2025, 3, 1), to: day(2026, 3, 1)},
		{name: "monthly every other month on the 31st", ev: monthlyEvent(at(2025, 1, 31, 10, 0), time.Hour, 2, 31), from: day(2025, 1, 1), to: day(2026, 12, 31)},
		{name: "monthly twice a month", ev: monthlyEvent(at(2024, 12, 1, 6, 0), time.Hour, 1, 1, 16), from: day(2025, 4, 1), to: day(2025, 8, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ToRRule(tt.ev)
			require.NoError(t, err)

			loc := tt.ev.Start.Location()
			from := time.Date(tt.from.Year(), tt.from.Month(), tt.from.Day(), 0, 0, 0, 0, loc)
			to := time.Date(tt.to.Year(), tt.to.Month(), tt.to.Day(), 23, 59, 59, 0, loc)

			expected := r.Between(from, to, true)
			got := starts(Expand(tt.ev, tt.from, tt.to))

			require.Len(t, got, len(expected))
			for i := range expected {
				assert.True(t, expected[i].Equal(got[i]), "occurrence %d: rrule %s, expand %s", i, expected[i], got[i])
			}
		})
	}
}

func TestToRRule_Errors(t *testing.T) {
	_, err := ToRRule(model.Event{Start: at(2025, 1, 1, 9, 0)})
	assert.ErrorIs(t, err, ErrNotRecurring)

	_, err = ToRRule(weeklyEvent(at(2025, 1, 1, 9, 0), time.Hour, 1))
	assert.ErrorIs(t, err, ErrUnsupportedRule)
}

func TestRRuleString(t *testing.T) {
	s, err := RRuleString(weeklyEvent(at(2025, 1, 6, 9, 0), time.Hour, 2, 3, 1))
	require.NoError(t, err)
	assert.Contains(t, s, "FREQ=WEEKLY")
	assert.Contains(t, s, "INTERVAL=2")
	assert.Contains(t, s, "BYDAY=MO,WE")
	assert.NotContains(t, s, "DTSTART")
}

func TestFromRRule(t *testing.T) {
	anchor := at(2025, 1, 8, 9, 0) // Wednesday

	tests := []struct {
		name        string
		raw         string
		expected    model.Pattern
		until       *time.Time
		expectedErr error
	}{
		{
			name:     "weekly by day",
			raw:      "FREQ=WEEKLY;INTERVAL=2;BYDAY=FR,MO",
			expected: model.Weekly{Interval: 2, Days: []int{1, 5}},
		},
		{
			name:     "weekly defaults to the anchor weekday",
			raw:      "FREQ=WEEKLY",
			expected: model.Weekly{Interval: 1, Days: []int{3}},
		},
		{
			name:     "monthly by month day with until",
			raw:      "FREQ=MONTHLY;BYMONTHDAY=15,1;UNTIL=20251231T000000Z",
			expected: model.Monthly{Interval: 1, MonthDays: []int{1, 15}},
			until:    func() *time.Time { d := day(2025, 12, 31); return &d }(),
		},
		{
			name:     "monthly defaults to the anchor day",
			raw:      "RRULE:FREQ=MONTHLY;INTERVAL=3",
			expected: model.Monthly{Interval: 3, MonthDays: []int{8}},
		},
		{name: "daily", raw: "FREQ=DAILY", expectedErr: ErrUnsupportedRule},
		{name: "count", raw: "FREQ=WEEKLY;COUNT=4", expectedErr: ErrUnsupportedRule},
		{name: "nth weekday of month", raw: "FREQ=MONTHLY;BYDAY=2TU", expectedErr: ErrUnsupportedRule},
		{name: "last day of month", raw: "FREQ=MONTHLY;BYMONTHDAY=-1", expectedErr: ErrUnsupportedRule},
		{name: "garbage", raw: "FREQ=SOMETIMES", expectedErr: ErrUnsupportedRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := FromRRule(tt.raw, anchor)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rec.Pattern)
			assert.Equal(t, tt.until, rec.Until)
		})
	}
}
