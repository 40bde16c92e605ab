// Package entry holds the per-user calendar of moods and journal text, the
// streak calculation over it, and the coordinator that applies changes
// optimistically and persists them to the user document.
package entry

import (
	"sort"
	"time"

	"github.com/moody-app/moody/internal/pkg/datekey"
)

// Day is the logged data for one calendar day. Mood 0 and an empty Journal
// both mean absent.
type Day struct {
	Mood      int       `json:"mood,omitempty"`
	Journal   string    `json:"journal,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Empty reports whether the day has neither a mood nor journal text.
func (d Day) Empty() bool { return d.Mood <= 0 && d.Journal == "" }

// HasMood reports whether the day carries a numeric mood.
func (d Day) HasMood() bool { return d.Mood > 0 }

// Patch names the fields to change. A nil field is left alone; a pointer
// to 0 or "" removes that field.
type Patch struct {
	Mood      *int
	Journal   *string
	UpdatedAt time.Time
}

// Int and String build Patch field pointers.
func Int(v int) *int          { return &v }
func String(v string) *string { return &v }

type (
	monthDays map[int]Day
	yearDays  map[int]monthDays
)

// Store is an immutable snapshot of the calendar, keyed year -> month
// (0-11) -> day. Mutators return a new Store sharing untouched months with
// the receiver, so pointer equality tells whether anything changed.
type Store struct {
	years map[int]yearDays
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{years: map[int]yearDays{}} }

// GetDay returns the day's fields; the zero Day when unlogged.
func (s *Store) GetDay(year, month, day int) Day {
	if s == nil {
		return Day{}
	}
	return s.years[year][month][day]
}

// with returns a copy of s whose (year, month) container holds d at day.
// An empty d removes the day; the containers stay.
func (s *Store) with(year, month, day int, d Day) *Store {
	years := make(map[int]yearDays, len(s.years)+1)
	for y, v := range s.years {
		years[y] = v
	}
	oldYear := s.years[year]
	newYear := make(yearDays, len(oldYear)+1)
	for m, v := range oldYear {
		newYear[m] = v
	}
	oldMonth := oldYear[month]
	newMonth := make(monthDays, len(oldMonth)+1)
	for k, v := range oldMonth {
		newMonth[k] = v
	}
	if d.Empty() {
		delete(newMonth, day)
	} else {
		newMonth[day] = d
	}
	newYear[month] = newMonth
	years[year] = newYear
	return &Store{years: years}
}

// UpsertDay merges the provided fields into the day.
func (s *Store) UpsertDay(year, month, day int, p Patch) *Store {
	if s == nil {
		s = NewStore()
	}
	d := s.GetDay(year, month, day)
	if p.Mood != nil {
		d.Mood = *p.Mood
		if d.Mood < 0 {
			d.Mood = 0
		}
	}
	if p.Journal != nil {
		d.Journal = *p.Journal
	}
	if !p.UpdatedAt.IsZero() {
		d.UpdatedAt = p.UpdatedAt
	}
	if d.Empty() {
		d = Day{}
	}
	return s.with(year, month, day, d)
}

// DeleteDay removes the mood, journal and update marker of the day.
func (s *Store) DeleteDay(year, month, day int) *Store {
	if s == nil {
		s = NewStore()
	}
	return s.with(year, month, day, Day{})
}

// RestoreDay sets the day to exactly d.
func (s *Store) RestoreDay(year, month, day int, d Day) *Store {
	if s == nil {
		s = NewStore()
	}
	if d.Empty() {
		d = Day{}
	}
	return s.with(year, month, day, d)
}

// LoggedDates is the set of date keys of days with a numeric mood.
func (s *Store) LoggedDates() map[string]struct{} {
	out := map[string]struct{}{}
	s.Each(func(y, m, d int, day Day) {
		if day.HasMood() {
			out[datekey.Key(y, m, d)] = struct{}{}
		}
	})
	return out
}

// Each visits every logged day in calendar order.
func (s *Store) Each(fn func(year, month, day int, d Day)) {
	if s == nil {
		return
	}
	for _, y := range sortedKeys(s.years) {
		months := s.years[y]
		for _, m := range sortedKeys(months) {
			days := months[m]
			for _, d := range sortedKeys(days) {
				fn(y, m, d, days[d])
			}
		}
	}
}

// Month returns the logged days of one month.
func (s *Store) Month(year, month int) map[int]Day {
	out := map[int]Day{}
	if s == nil {
		return out
	}
	for d, v := range s.years[year][month] {
		out[d] = v
	}
	return out
}

// Len is the number of logged days.
func (s *Store) Len() int {
	n := 0
	s.Each(func(int, int, int, Day) { n++ })
	return n
}

// Equal compares logged content, ignoring empty leftover containers.
func (s *Store) Equal(o *Store) bool {
	if s == o {
		return true
	}
	if s.Len() != o.Len() {
		return false
	}
	equal := true
	s.Each(func(y, m, d int, day Day) {
		other := o.GetDay(y, m, d)
		if other.Mood != day.Mood || other.Journal != day.Journal || !other.UpdatedAt.Equal(day.UpdatedAt) {
			equal = false
		}
	})
	return equal
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
