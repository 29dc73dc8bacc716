package types

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// DateOf strips the clock part of t, keeping the calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysInclusive counts calendar days from start to end, both ends included.
// The result is never less than 1.
func DaysInclusive(start, end time.Time) int {
	days := int(DateOf(end).Sub(DateOf(start)).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}
