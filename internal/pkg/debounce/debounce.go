// Package debounce coalesces bursts of triggers into a single trailing call.
// Mood saves and journal autosave both schedule through it.
package debounce

import (
	"sync"
	"time"

	"github.com/moody-app/moody/internal/pkg/clock"
)

type entry struct {
	timer clock.Timer
	gen   uint64
	fn    func()
}

// Debouncer keeps at most one pending timer per key.
type Debouncer struct {
	clock   clock.Clock
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	stopped bool
}

// New creates a Debouncer driven by c (wall clock when nil).
func New(c clock.Clock) *Debouncer {
	return &Debouncer{clock: clock.OrReal(c), entries: make(map[string]*entry)}
}

// Trigger restarts the quiet-period timer for key. fn replaces any
// previously scheduled function and runs once, window after the last
// Trigger. A non-positive window cancels the pending timer and runs fn
// immediately on the caller's goroutine.
func (d *Debouncer) Trigger(key string, window time.Duration, fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
	if window <= 0 {
		d.mu.Unlock()
		fn()
		return
	}
	d.gen++
	gen := d.gen
	e := &entry{gen: gen, fn: fn}
	e.timer = d.clock.AfterFunc(window, func() { d.fire(key, gen) })
	d.entries[key] = e
	d.mu.Unlock()
}

func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok || e.gen != gen {
		// cancelled or superseded after the timer already fired
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()
	e.fn()
}

// Flush runs the pending function for key now, on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	e, ok := d.entries[key]
	if ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
	d.mu.Unlock()
	if ok {
		e.fn()
	}
	return ok
}

// Cancel drops the pending call for key without running it.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
	return ok
}

// Pending reports whether key has a scheduled call.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Keys lists keys with a scheduled call.
func (d *Debouncer) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	return keys
}

// FlushAll runs every pending call now and returns how many ran.
func (d *Debouncer) FlushAll() int {
	n := 0
	for _, k := range d.Keys() {
		if d.Flush(k) {
			n++
		}
	}
	return n
}

// Stop cancels every timer. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, k)
	}
	d.stopped = true
}
