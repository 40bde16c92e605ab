// Package clock exposes the injectable clock used by every time-dependent
// component (streaks, debounce timers, cache freshness, dictation cap).
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type (
	Clock = clockwork.Clock
	Timer = clockwork.Timer
)

// Real returns the wall clock.
func Real() Clock { return clockwork.NewRealClock() }

// OrReal returns c, or the wall clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}

// Today truncates t to midnight in its own location.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// InZone converts t into loc when loc is set.
func InZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
