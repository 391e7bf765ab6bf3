// utils/dates.go - calendar date parsing shared by the transformer, job and API
package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO calendar date layout used by the upstream API and the warehouse.
	DateLayout = "2006-01-02"
	// TimestampLayout is the layout of book created/updated timestamps.
	TimestampLayout = "2006-01-02 15:04:05"
)

// ErrInvalidDate is returned when a value is not a valid calendar date.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses an ISO date into midnight UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.UTC(), nil
}

// ParseOptionalDate returns nil for a blank value and an error for a malformed one.
func ParseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseOptionalTimestamp parses "2006-01-02 15:04:05" values, nil when blank.
func ParseOptionalTimestamp(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return &t, nil
}

// TruncateDay drops the clock part of t, keeping t's calendar day, as midnight UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateKey returns the YYYYMMDD surrogate key of a calendar date.
func DateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Quarter returns the calendar quarter (1-4) of t.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// WeekBounds returns the Monday and Sunday of the ISO week containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	day := TruncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// DaysInclusive lists every calendar day from start to end, both included.
func DaysInclusive(start, end time.Time) []time.Time {
	start, end = TruncateDay(start), TruncateDay(end)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
