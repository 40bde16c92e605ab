package entry

import (
	"strconv"
	"strings"
	"time"

	"github.com/moody-app/moody/internal/pkg/docstore"
)

const (
	journalPrefix   = "journal_"
	updatedAtPrefix = "updatedAt_"
	streakField     = "streak"
)

// Decode builds a Store from the user document. It also returns the
// cached streak projection. Unknown keys are ignored.
func Decode(doc docstore.Document) (*Store, int) {
	s := NewStore()
	streak, _ := docstore.Int(doc[streakField])
	for yk, yv := range doc {
		year, err := strconv.Atoi(yk)
		if err != nil {
			continue
		}
		months, ok := docstore.Map(yv)
		if !ok {
			continue
		}
		for mk, mv := range months {
			month, err := strconv.Atoi(mk)
			if err != nil || month < 0 || month > 11 {
				continue
			}
			fields, ok := docstore.Map(mv)
			if !ok {
				continue
			}
			for day, d := range decodeMonth(fields) {
				s = s.RestoreDay(year, month, day, d)
			}
		}
	}
	return s, streak
}

func decodeMonth(fields map[string]interface{}) map[int]Day {
	days := map[int]Day{}
	for k, v := range fields {
		name, day, ok := splitField(k)
		if !ok {
			continue
		}
		d := days[day]
		switch name {
		case "":
			if rank, ok := docstore.Int(v); ok && rank > 0 {
				d.Mood = rank
			}
		case journalPrefix:
			if text, ok := v.(string); ok {
				d.Journal = text
			}
		case updatedAtPrefix:
			if ts, ok := v.(time.Time); ok {
				d.UpdatedAt = ts
			}
		}
		days[day] = d
	}
	for day, d := range days {
		if d.Empty() {
			delete(days, day)
		}
	}
	return days
}

func splitField(k string) (prefix string, day int, ok bool) {
	for _, p := range []string{journalPrefix, updatedAtPrefix} {
		if strings.HasPrefix(k, p) {
			prefix, k = p, strings.TrimPrefix(k, p)
			break
		}
	}
	day, err := strconv.Atoi(k)
	if err != nil || day < 1 || day > 31 {
		return "", 0, false
	}
	return prefix, day, true
}

// Encode renders the store in the user document layout.
func Encode(s *Store) map[string]interface{} {
	out := map[string]interface{}{}
	s.Each(func(y, m, d int, day Day) {
		yk, mk := strconv.Itoa(y), strconv.Itoa(m)
		months, _ := out[yk].(map[string]interface{})
		if months == nil {
			months = map[string]interface{}{}
			out[yk] = months
		}
		fields, _ := months[mk].(map[string]interface{})
		if fields == nil {
			fields = map[string]interface{}{}
			months[mk] = fields
		}
		if day.HasMood() {
			fields[strconv.Itoa(d)] = day.Mood
		}
		if day.Journal != "" {
			fields[journalPrefix+strconv.Itoa(d)] = day.Journal
		}
		if !day.UpdatedAt.IsZero() {
			fields[updatedAtPrefix+strconv.Itoa(d)] = day.UpdatedAt
		}
	})
	return out
}

func moodPath(y, m, d int) string    { return docstore.Path(y, m, d) }
func journalPath(y, m, d int) string { return docstore.Path(y, m, journalPrefix+strconv.Itoa(d)) }
func stampPath(y, m, d int) string   { return docstore.Path(y, m, updatedAtPrefix+strconv.Itoa(d)) }

// fieldPatch is the merge write for a change of the named fields. next is
// the day after the change; the update marker is refreshed while the day
// is logged and removed once it is empty.
func fieldPatch(y, m, d int, p Patch, next Day, streak *int) docstore.Patch {
	out := docstore.Patch{}
	if p.Mood != nil {
		if next.HasMood() {
			out[moodPath(y, m, d)] = next.Mood
		} else {
			out[moodPath(y, m, d)] = docstore.Delete
		}
	}
	if p.Journal != nil {
		if next.Journal != "" {
			out[journalPath(y, m, d)] = next.Journal
		} else {
			out[journalPath(y, m, d)] = docstore.Delete
		}
	}
	if next.Empty() {
		out[stampPath(y, m, d)] = docstore.Delete
	} else {
		out[stampPath(y, m, d)] = docstore.ServerTimestamp
	}
	if streak != nil {
		out[streakField] = *streak
	}
	return out
}

// deletePatch removes every field of the day.
func deletePatch(y, m, d int, streak int) docstore.Patch {
	return docstore.Patch{
		moodPath(y, m, d):    docstore.Delete,
		journalPath(y, m, d): docstore.Delete,
		stampPath(y, m, d):   docstore.Delete,
		streakField:          streak,
	}
}
