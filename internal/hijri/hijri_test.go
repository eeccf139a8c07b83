package hijri

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGregorianToJulianDay(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		expected         float64
	}{
		{name: "J2000", year: 2000, month: 1, day: 1, expected: 2451545},
		{name: "unix epoch", year: 1970, month: 1, day: 1, expected: 2440588},
		{name: "gregorian reform", year: 1582, month: 10, day: 15, expected: 2299161},
		{name: "leap day", year: 2024, month: 2, day: 29, expected: 2460370},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GregorianToJulianDay(tt.year, tt.month, tt.day))
		})
	}
}

func TestJulianDayToGregorian_AcceptsNoonAndMidnight(t *testing.T) {
	assert.Equal(t, Date{2000, 1, 1}, JulianDayToGregorian(2451545))
	assert.Equal(t, Date{2000, 1, 1}, JulianDayToGregorian(2451544.5))
	assert.Equal(t, Date{1999, 12, 31}, JulianDayToGregorian(2451544))
	assert.Equal(t, Date{2000, 12, 31}, JulianDayToGregorian(GregorianToJulianDay(2000, 12, 31)))
}

func TestGregorianRoundTrip(t *testing.T) {
	day := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2100, 12, 31, 0, 0, 0, 0, time.UTC)

	for !day.After(end) {
		y, m, d := day.Year(), int(day.Month()), day.Day()
		got := JulianDayToGregorian(GregorianToJulianDay(y, m, d))
		require.Equal(t, Date{y, m, d}, got, "round trip of %s", day.Format(time.DateOnly))
		day = day.AddDate(0, 0, 1)
	}
}

func TestHijriRoundTrip(t *testing.T) {
	for year := 1300; year <= 1700; year++ {
		for month := 1; month <= 12; month++ {
			length := MonthLength(year, month)
			require.Contains(t, []int{29, 30}, length, "length of %d-%d", year, month)

			for day := 1; day <= length; day++ {
				g := JulianDayToGregorian(HijriToJulianDay(year, month, day))
				got := JulianDayToHijri(GregorianToJulianDay(g.Year, g.Month, g.Day))
				require.Equal(t, Date{year, month, day}, got, "round trip of %d-%d-%d", year, month, day)
			}
		}
	}
}

func TestKnownDates(t *testing.T) {
	t.Run("epoch", func(t *testing.T) {
		assert.Equal(t, Epoch, HijriToJulianDay(1, 1, 1))
		assert.Equal(t, time.Date(622, 7, 19, 0, 0, 0, 0, time.UTC), ToTime(1, 1, 1, time.UTC))
	})

	t.Run("new year 2000 falls in Ramadan 1420", func(t *testing.T) {
		c := FromTime(time.Date(2000, 1, 1, 15, 0, 0, 0, time.UTC))
		assert.Equal(t, Date{1420, 9, 24}, c.Date)
		assert.Equal(t, 30, c.DaysInMonth)
		assert.Equal(t, "24 Ramadan 1420 H", c.String())
	})

	t.Run("noon day number maps to the same civil day", func(t *testing.T) {
		jd := GregorianToJulianDay(2025, 3, 1)
		assert.Equal(t, 2460736.0, jd)
		assert.Equal(t, Date{1446, 9, 1}, JulianDayToHijri(jd))
		assert.Equal(t, Date{1446, 9, 1}, JulianDayToHijri(jd-0.5))
		assert.Equal(t, jd-0.5, HijriToJulianDay(1446, 9, 1))
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ToTime(1446, 9, 1, time.UTC))
	})
}

func TestHijriToJulianDay_MonthOverflow(t *testing.T) {
	assert.Equal(t, HijriToJulianDay(1446, 1, 1), HijriToJulianDay(1445, 13, 1))
	assert.Equal(t, HijriToJulianDay(1444, 12, 10), HijriToJulianDay(1445, 0, 10))
	assert.Equal(t, HijriToJulianDay(1447, 2, 5), HijriToJulianDay(1445, 26, 5))
}

func TestMonthLength(t *testing.T) {
	// 1420 is a leap year of the cycle, 1421 is not.
	assert.Equal(t, 30, MonthLength(1420, 12))
	assert.Equal(t, 29, MonthLength(1421, 12))
	assert.Equal(t, 30, MonthLength(1420, 9))
	assert.Equal(t, 29, MonthLength(1420, 2))

	for _, year := range []int{1420, 1421, 1445, 1446} {
		total := 0
		for month := 1; month <= 12; month++ {
			total += MonthLength(year, month)
		}
		assert.Contains(t, []int{354, 355}, total, "year %d", year)
	}
}

func TestShiftMonth(t *testing.T) {
	tests := []struct {
		name                      string
		year, month, delta        int
		expectedYear, expectedMon int
	}{
		{name: "no shift", year: 1445, month: 5, delta: 0, expectedYear: 1445, expectedMon: 5},
		{name: "forward over year end", year: 1445, month: 12, delta: 1, expectedYear: 1446, expectedMon: 1},
		{name: "backward over year start", year: 1446, month: 1, delta: -1, expectedYear: 1445, expectedMon: 12},
		{name: "several years back", year: 1445, month: 3, delta: -27, expectedYear: 1442, expectedMon: 12},
		{name: "full year", year: 1445, month: 7, delta: 12, expectedYear: 1446, expectedMon: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, m := ShiftMonth(tt.year, tt.month, tt.delta)
			assert.Equal(t, tt.expectedYear, y)
			assert.Equal(t, tt.expectedMon, m)
		})
	}
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "Muharram", MonthName(1))
	assert.Equal(t, "Zulhijjah", MonthName(12))
	assert.Equal(t, "Bulan 13", MonthName(13))
}

func TestMonthRange(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	day := time.Date(2000, 1, 1, 10, 0, 0, 0, loc)

	r := MonthRange(day)

	assert.Equal(t, 1420, r.HijriYear)
	assert.Equal(t, 9, r.HijriMonth)
	assert.Equal(t, 30, r.DaysInMonth)
	// 24 Ramadan is 1 January, so 1 Ramadan is 23 days earlier.
	assert.Equal(t, time.Date(1999, 12, 9, 0, 0, 0, 0, loc), r.Start)
	assert.Equal(t, time.Date(2000, 1, 7, 23, 59, 59, 999999999, loc), r.End)
	assert.Equal(t, "Ramadan 1420 H", FormatMonth(day))
}
