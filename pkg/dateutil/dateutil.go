// Package dateutil provides calendar-date helpers shared by the scheduling engine.
//
// A calendar date is carried as a time.Time at midnight UTC regardless of the
// location it was derived from, so that DATE columns round-trip unchanged.
// Instants (slot start/end) are built by combining a date with a wall-clock
// offset in an explicit location.
package dateutil

import (
	"errors"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// ErrInvalidDateFormat is returned when a date is not in YYYY-MM-DD format.
var ErrInvalidDateFormat = errors.New("date must be in YYYY-MM-DD format")

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize strips the time component of a date without shifting its day.
func Normalize(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}
	return t, nil
}

// Format renders a calendar date.
func Format(date time.Time) string {
	return Normalize(date).Format(Layout)
}

// SameDay reports whether two dates fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Normalize(a).Equal(Normalize(b))
}

// AddDays shifts a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return Normalize(date).AddDate(0, 0, n)
}

// NextWeekday returns the first date on or after date that falls on day.
func NextWeekday(date time.Time, day time.Weekday) time.Time {
	date = Normalize(date)
	delta := (int(day) - int(date.Weekday()) + 7) % 7
	return date.AddDate(0, 0, delta)
}

// At combines a calendar date with a wall-clock offset in loc.
func At(date time.Time, offset time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(offset)
}

// WeekDays returns seven consecutive dates starting at start.
func WeekDays(start time.Time) []time.Time {
	start = Normalize(start)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
