package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type photo struct {
	URL         string `bson:"url"`
	StoragePath string `bson:"storagePath"`
}

func TestMemoryMergeNestedPaths(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC))
	s := NewMemory(clk)
	key := UserKey("u1")

	require.NoError(t, s.Merge(ctx, key, Patch{
		Path(2025, 3, 15):      8,
		"journal_2025-04-15":   "hi",
		"updatedAt_2025-04-15": ServerTimestamp,
		Path(2025, 3, 16):      2,
	}))
	require.NoError(t, s.Merge(ctx, key, Patch{Path(2025, 3, 16): Delete}))

	doc, err := s.Get(ctx, key)
	require.NoError(t, err)

	year, ok := Map(doc["2025"])
	require.True(t, ok)
	month, ok := Map(year["3"])
	require.True(t, ok)
	v, ok := Int(month["15"])
	require.True(t, ok)
	assert.Equal(t, 8, v)
	assert.NotContains(t, month, "16")
	assert.Equal(t, "hi", doc["journal_2025-04-15"])
	assert.Equal(t, clk.Now().UTC(), doc["updatedAt_2025-04-15"])
}

func TestMemoryMergeLeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(clockwork.NewFakeClock())
	key := UserKey("u1")

	require.NoError(t, s.Merge(ctx, key, Patch{"a": 1, "b": "x"}))
	require.NoError(t, s.Merge(ctx, key, Patch{"b": "y"}))

	doc, err := s.Get(ctx, key)
	require.NoError(t, err)
	a, _ := Int(doc["a"])
	assert.Equal(t, 1, a)
	assert.Equal(t, "y", doc["b"])
}

func TestMemoryArrayUnionSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(clockwork.NewFakeClock())
	key := SubKey("u1", "memories", "2025-4")

	p := photo{URL: "https://x/1", StoragePath: "memories/u1/1.jpg"}
	require.NoError(t, s.Merge(ctx, key, Patch{"15": ArrayUnion(p), "month": "2025-4"}))
	require.NoError(t, s.Merge(ctx, key, Patch{"15": ArrayUnion(p, photo{URL: "https://x/2"})}))

	doc, err := s.Get(ctx, key)
	require.NoError(t, err)
	list, ok := doc["15"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)

	var got photo
	require.NoError(t, Decode(list[0], &got))
	assert.Equal(t, p, got)
}

func TestMemoryGetMissing(t *testing.T) {
	s := NewMemory(nil)
	_, err := s.Get(context.Background(), UserKey("nobody"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(nil)

	err := s.Merge(ctx, UserKey(""), Patch{"a": 1})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	err = s.Merge(ctx, UserKey("u1"), Patch{"a..b": 1})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	err = s.Merge(ctx, SubKey("u1", "insights", ""), Patch{"a": 1})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Zero(t, s.Len())
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(nil)
	key := UserKey("u1")
	require.NoError(t, s.Merge(ctx, key, Patch{"2025.3.1": 5}))

	doc, err := s.Get(ctx, key)
	require.NoError(t, err)
	year, _ := Map(doc["2025"])
	year["3"] = "clobbered"

	again, err := s.Get(ctx, key)
	require.NoError(t, err)
	year, _ = Map(again["2025"])
	_, isMap := Map(year["3"])
	assert.True(t, isMap)
}

func TestReplaceAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(nil)
	key := SubKey("u1", "insights", "abc")

	require.NoError(t, s.Replace(ctx, key, Document{"text": "t", "n": 1}))
	require.NoError(t, s.Replace(ctx, key, Document{"text": "t2"}))
	doc, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, Document{"text": "t2"}, doc)

	require.NoError(t, s.Remove(ctx, key))
	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNormalizeDriverTypes(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in, err := toPlain(map[string]interface{}{
		"when": now,
		"list": []interface{}{int32(1), "a"},
	})
	require.NoError(t, err)
	m, ok := Map(in)
	require.True(t, ok)
	assert.Equal(t, now, m["when"])
	assert.Equal(t, []interface{}{int32(1), "a"}, m["list"])
}
