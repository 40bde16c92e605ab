package entry

import (
	"time"

	"github.com/moody-app/moody/internal/pkg/datekey"
)

// Stats are the figures derived from the store for the dashboard.
type Stats struct {
	Streak    int    `json:"streak"`
	LastMood  int    `json:"lastMood,omitempty"`
	LastDate  string `json:"lastDate,omitempty"`
	TotalDays int    `json:"totalDays"`
}

// ComputeStats derives the streak and last mood as of now. Only days with a
// numeric mood count. The streak is anchored on today when it is logged,
// else on yesterday, so an unlogged today does not break it before the day
// is over.
func ComputeStats(s *Store, now time.Time) Stats {
	logged := s.LoggedDates()
	st := Stats{TotalDays: len(logged)}

	start := -1
	switch {
	case has(logged, datekey.AddDays(now, 0)):
		start = 0
	case has(logged, datekey.AddDays(now, -1)):
		start = 1
	}
	if start >= 0 {
		for i := start; has(logged, datekey.AddDays(now, -i)); i++ {
			st.Streak++
		}
	}

	// Each walks in calendar order, so the last match wins
	today := datekey.FromTime(now)
	var latest, before Stats
	s.Each(func(y, m, d int, day Day) {
		if !day.HasMood() {
			return
		}
		key := datekey.Key(y, m, d)
		latest.LastDate, latest.LastMood = key, day.Mood
		if key < today {
			before.LastDate, before.LastMood = key, day.Mood
		}
	})
	if before.LastDate != "" {
		st.LastDate, st.LastMood = before.LastDate, before.LastMood
	} else {
		st.LastDate, st.LastMood = latest.LastDate, latest.LastMood
	}
	return st
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
