// Package datekey maps (year, month, day) triples to calendar facts.
//
// Months are zero-based (0 = January) to match the stored document layout.
// Inputs are not validated; callers derive them from a clock or from the
// stored document.
package datekey

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date builds midnight of the given calendar day in loc (UTC when nil).
func Date(year, month0, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.Month(month0+1), day, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days in month0 of year, leap-year aware.
func DaysInMonth(year, month0 int) int {
	// day zero of the following month is the last day of this one
	return time.Date(year, time.Month(month0+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday of the first of the month, 0 = Sunday.
func FirstWeekday(year, month0 int) int {
	return int(Date(year, month0, 1, time.UTC).Weekday())
}

// GridRows is the number of 7-column rows needed to lay the month out with
// leading blanks.
func GridRows(year, month0 int) int {
	cells := FirstWeekday(year, month0) + DaysInMonth(year, month0)
	return (cells + 6) / 7
}

// IsFuture reports whether the date strictly follows today's calendar date.
func IsFuture(year, month0, day int, today time.Time) bool {
	ty, tm, td := today.Date()
	if year != ty {
		return year > ty
	}
	if month0 != int(tm)-1 {
		return month0 > int(tm)-1
	}
	return day > td
}

// IsFutureMonth reports whether (year, month0) is strictly after today's month.
func IsFutureMonth(year, month0 int, today time.Time) bool {
	ty, tm, _ := today.Date()
	if year != ty {
		return year > ty
	}
	return month0 > int(tm)-1
}

// Key is the canonical ISO YYYY-MM-DD key used for set membership.
func Key(year, month0, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month0+1, day)
}

// FromTime returns the key of t's calendar day, ignoring time of day.
func FromTime(t time.Time) string {
	y, m, d := t.Date()
	return Key(y, int(m)-1, d)
}

// AddDays returns the key of the calendar day n days after t.
func AddDays(t time.Time, n int) string {
	y, m, d := t.Date()
	return FromTime(time.Date(y, m, d+n, 0, 0, 0, 0, t.Location()))
}

// YearMonth is the memories bucket name, YYYY-MM with a one-based month.
func YearMonth(year, month0 int) string {
	return fmt.Sprintf("%04d-%02d", year, month0+1)
}

// ParseYearMonth reverses YearMonth.
func ParseYearMonth(s string) (year, month0 int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid year-month %q", s)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid year-month %q", s)
	}
	return year, month - 1, nil
}

// UntilEndOfDay is the time left before the next local midnight.
func UntilEndOfDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}
