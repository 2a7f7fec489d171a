package model

import (
	"fmt"
	"time"
)

// DateFormat is the canonical string form of a Date (ISO 8601 date).
const DateFormat = "2006-01-02"

// Date represents a calendar date with no time component.
//
// The zero value is the zero date and is invalid as a snapshot date.
// Dates are comparable with == and totally ordered via Compare.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month, and day.
// Out-of-range values are normalized the way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// DateOf returns the Date on which t falls, in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{y, m, d}
}

// ParseDate parses a date in "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// time returns the canonical instant for the date (midnight UTC).
func (d Date) time() time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}

// String formats the date as "2006-01-02".
func (d Date) String() string { return d.time().Format(DateFormat) }

// Compact formats the date as "20060102", the form TDCC query parameters use.
func (d Date) Compact() string { return d.time().Format("20060102") }

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Year returns the year.
func (d Date) Year() int { return d.y }

// Month returns the month.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Compare returns -1 if d is before x, 0 if equal, +1 if after.
func (d Date) Compare(x Date) int {
	switch {
	case d.Before(x):
		return -1
	case d.After(x):
		return 1
	default:
		return 0
	}
}

// AddDays returns the date i days after d (before, if i is negative).
func (d Date) AddDays(i int) Date { return NewDate(d.y, d.m, d.d+i) }

// DaysBetween returns the number of days from d to x (negative if x is
// before d).
func DaysBetween(d, x Date) int {
	return int(x.time().Sub(d.time()) / (24 * time.Hour))
}

// MarshalText implements encoding.TextMarshaler using DateFormat.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// WeeklyDates returns the weekly anchor dates on the given weekday that
// fall within [start, end], ascending. TDCC publishes one disclosure per
// week, normally dated Friday, so callers generate candidates with
// anchor == time.Friday.
func WeeklyDates(start, end Date, anchor time.Weekday) []Date {
	if start.After(end) {
		return nil
	}

	// Advance start to the first anchor weekday on or after it.
	offset := int(anchor - start.Weekday())
	if offset < 0 {
		offset += 7
	}
	first := start.AddDays(offset)

	var dates []Date
	for d := first; !d.After(end); d = d.AddDays(7) {
		dates = append(dates, d)
	}
	return dates
}
