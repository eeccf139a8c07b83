// Package hijri converts between the Gregorian calendar and the tabular
// (arithmetical) Hijri calendar through Julian Day Numbers.
//
// The Hijri side is the 30-year cycle with 11 leap years. It is a fixed
// approximation and will differ by a day or two from calendars based on
// lunar sighting.
//
// Julian days come in two flavours here: GregorianToJulianDay returns the
// integer, noon-based day number while HijriToJulianDay returns the .5 value
// of the preceding midnight. Both inverse functions accept either form for
// the same civil day.
package hijri

import (
	"fmt"
	"math"
)

const (
	// GregorianEpoch is the Julian day of 1 January 1 (proleptic Gregorian), midnight.
	GregorianEpoch = 1721425.5
	// Epoch is the Julian day of 1 Muharram 1 AH, midnight.
	Epoch = 1948439.5
)

var monthNames = [12]string{
	"Muharram",
	"Safar",
	"Rabi'ul Awal",
	"Rabi'ul Akhir",
	"Jumadil Awal",
	"Jumadil Akhir",
	"Rajab",
	"Sya'ban",
	"Ramadan",
	"Syawal",
	"Zulkaidah",
	"Zulhijjah",
}

// Date is a civil date in either calendar.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String formats a Hijri date as "24 Ramadan 1420 H".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d H", d.Day, MonthName(d.Month), d.Year)
}

// MonthName returns the name of a Hijri month (1-12). Out of range months
// are reported as "Bulan N".
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("Bulan %d", month)
	}
	return monthNames[month-1]
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}

// IsGregorianLeap reports whether year is a Gregorian leap year.
func IsGregorianLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// GregorianToJulianDay returns the (noon based) Julian Day Number of a
// proleptic Gregorian date.
func GregorianToJulianDay(year, month, day int) float64 {
	a := floorDiv(14-month, 12)
	y := year + 4800 - a
	m := month + 12*a - 3
	jdn := day + floorDiv(153*m+2, 5) + 365*y + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
	return float64(jdn)
}

// midnight returns the Julian day at the start of the civil day containing jd.
func midnight(jd float64) float64 {
	return math.Floor(jd-0.5) + 0.5
}

// JulianDayToGregorian converts a Julian day back to a proleptic Gregorian date.
func JulianDayToGregorian(jd float64) Date {
	wjd := midnight(jd)
	depoch := int(wjd - GregorianEpoch)

	quadricent := floorDiv(depoch, 146097)
	dqc := mod(depoch, 146097)
	cent := dqc / 36524
	dcent := mod(dqc, 36524)
	quad := dcent / 1461
	dquad := mod(dcent, 1461)
	yindex := dquad / 365

	year := quadricent*400 + cent*100 + quad*4 + yindex
	if !(cent == 4 || yindex == 4) {
		year++
	}

	start := func(y, m int) float64 { return GregorianToJulianDay(y, m, 1) - 0.5 }

	yearday := int(wjd - start(year, 1))
	leapadj := 0
	if wjd >= start(year, 3) {
		if IsGregorianLeap(year) {
			leapadj = 1
		} else {
			leapadj = 2
		}
	}
	month := floorDiv((yearday+leapadj)*12+373, 367)
	day := int(wjd-start(year, month)) + 1

	return Date{Year: year, Month: month, Day: day}
}

// normalize carries any month value into the year so that month ends up in 1..12.
func normalize(year, month int) (int, int) {
	return year + floorDiv(month-1, 12), mod(month-1, 12) + 1
}

// HijriToJulianDay returns the Julian day (midnight, .5) of a tabular Hijri
// date. Month values outside 1..12 roll over into the year.
func HijriToJulianDay(year, month, day int) float64 {
	y, m := normalize(year, month)
	return float64(day) +
		math.Ceil(29.5*float64(m-1)) +
		float64((y-1)*354) +
		float64(floorDiv(3+11*y, 30)) +
		Epoch - 1
}

// JulianDayToHijri converts a Julian day to a tabular Hijri date.
func JulianDayToHijri(jd float64) Date {
	wjd := midnight(jd)

	year := int(math.Floor((30*(wjd-Epoch) + 10646) / 10631))
	// keep the estimate inside its own year; the closed form can be off by one
	// near year boundaries for far out-of-range inputs
	for wjd < HijriToJulianDay(year, 1, 1) {
		year--
	}
	for wjd >= HijriToJulianDay(year+1, 1, 1) {
		year++
	}

	month := int(math.Ceil((wjd-(29+HijriToJulianDay(year, 1, 1)))/29.5)) + 1
	month = min(12, max(1, month))
	for month > 1 && wjd < HijriToJulianDay(year, month, 1) {
		month--
	}

	day := int(wjd-HijriToJulianDay(year, month, 1)) + 1
	return Date{Year: year, Month: month, Day: day}
}

// MonthLength returns the number of days (29 or 30) in a Hijri month.
func MonthLength(year, month int) int {
	start := HijriToJulianDay(year, month, 1)
	ny, nm := normalize(year, month+1)
	return int(HijriToJulianDay(ny, nm, 1) - start)
}

// ShiftMonth adds delta months to a Hijri year/month.
func ShiftMonth(year, month, delta int) (int, int) {
	total := (year-1)*12 + (month - 1) + delta
	return floorDiv(total, 12) + 1, mod(total, 12) + 1
}
