// Package mood holds the fixed, ordered mood taxonomy. A mood's rank is its
// one-based position in the list.
package mood

import (
	"math"
	"strings"
)

// Name is a mood label such as "Good".
type Name string

const (
	FallbackName  Name = "Neutral"
	FallbackGlyph      = "😶"
)

// Level is one taxonomy entry.
type Level struct {
	Name  Name   `json:"name"`
	Glyph string `json:"glyph"`
}

// Taxonomy is an immutable ordered list of levels.
type Taxonomy struct {
	levels []Level
	index  map[Name]int
}

// Default is the thirteen-level taxonomy. The first five are the classic
// scale, the rest were added later and keep their positions.
var Default = New([]Level{
	{"Awful", "😭"},
	{"Sad", "🥺"},
	{"Existing", "😐"},
	{"Good", "😊"},
	{"Elated", "😃"},
	{"Grateful", "🙏"},
	{"Excited", "🤩"},
	{"Neutral", "😶"},
	{"Anxious", "😰"},
	{"Unsure", "😟"},
	{"Tired", "😴"},
	{"Stressed", "😩"},
	{"Angry", "😡"},
})

// New builds a taxonomy from levels. The slice is copied.
func New(levels []Level) *Taxonomy {
	t := &Taxonomy{
		levels: append([]Level(nil), levels...),
		index:  make(map[Name]int, len(levels)),
	}
	for i, l := range t.levels {
		t.index[l.Name] = i + 1
	}
	return t
}

// Len is N, the highest valid rank.
func (t *Taxonomy) Len() int { return len(t.levels) }

// Levels returns a copy of the ordered levels.
func (t *Taxonomy) Levels() []Level { return append([]Level(nil), t.levels...) }

// Valid reports whether rank is in [1, N].
func (t *Taxonomy) Valid(rank int) bool { return rank >= 1 && rank <= len(t.levels) }

// Clamp forces rank into [1, N].
func (t *Taxonomy) Clamp(rank int) int {
	if rank < 1 {
		return 1
	}
	if rank > len(t.levels) {
		return len(t.levels)
	}
	return rank
}

// RankToName clamps rank into range, so a corrupt stored value degrades to
// the nearest valid mood.
func (t *Taxonomy) RankToName(rank int) Name {
	if len(t.levels) == 0 {
		return FallbackName
	}
	return t.levels[t.Clamp(rank)-1].Name
}

// NameToRank returns the rank of name, or 0 when unknown.
func (t *Taxonomy) NameToRank(name Name) int {
	return t.index[name]
}

// NameToGlyph never returns an empty glyph.
func (t *Taxonomy) NameToGlyph(name Name) string {
	if r, ok := t.index[name]; ok {
		return t.levels[r-1].Glyph
	}
	if r, ok := t.index[Name(strings.TrimSpace(string(name)))]; ok {
		return t.levels[r-1].Glyph
	}
	return FallbackGlyph
}

// Convert accepts a stored mood value of any shape: numbers are clamped to a
// name, known names pass through, anything else is the fallback.
func (t *Taxonomy) Convert(v interface{}) Name {
	switch x := v.(type) {
	case int:
		return t.RankToName(x)
	case int32:
		return t.RankToName(int(x))
	case int64:
		return t.RankToName(int(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return FallbackName
		}
		return t.RankToName(int(x))
	case string:
		if _, ok := t.index[Name(x)]; ok {
			return Name(x)
		}
	case Name:
		if _, ok := t.index[x]; ok {
			return x
		}
	}
	return FallbackName
}

// RankToName uses the Default taxonomy.
func RankToName(rank int) Name { return Default.RankToName(rank) }

// NameToGlyph uses the Default taxonomy.
func NameToGlyph(name Name) string { return Default.NameToGlyph(name) }
