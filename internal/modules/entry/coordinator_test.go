package entry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/moody-app/moody/internal/pkg/docstore/docstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock interface {
	clock.Clock
	Advance(time.Duration)
	BlockUntil(int)
}

type harness struct {
	clk fakeClock
	mem *docstore.Memory
	rec *docstoretest.Recorder
	uid atomic.Value
	c   *Coordinator
}

var today = time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clk: clockwork.NewFakeClockAt(today)}
	h.mem = docstore.NewMemory(h.clk)
	h.rec = docstoretest.New(h.mem)
	h.uid.Store("u1")
	h.c = NewCoordinator(IdentityFunc(func() string { return h.uid.Load().(string) }), h.rec, Options{
		Clock:    h.clk,
		Location: time.UTC,
	})
	t.Cleanup(func() { _ = h.c.Close(context.Background()) })
	return h
}

func (h *harness) seed(t *testing.T, patch docstore.Patch) {
	t.Helper()
	require.NoError(t, h.mem.Merge(context.Background(), docstore.UserKey("u1"), patch))
	require.NoError(t, h.c.Load(context.Background()))
}

func (h *harness) merges() []docstore.Patch {
	return h.rec.Merges(docstore.UserKey("u1"))
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSetMoodAppliesLocallyBeforeWrite(t *testing.T) {
	h := newHarness(t)
	var seen []Event
	h.c.Subscribe(func(ev Event) { seen = append(seen, ev) })

	p, err := h.c.SetMood(context.Background(), 2025, 3, 15, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, h.c.Snapshot().GetDay(2025, 3, 15).Mood)
	require.Len(t, seen, 1)
	assert.Equal(t, EventApplied, seen[0].Kind)
	assert.Equal(t, 1, seen[0].Stats.Streak)
	assert.Zero(t, h.rec.Count())

	h.clk.Advance(DefaultMoodDebounce)
	require.NoError(t, p.Wait(waitCtx(t)))

	merges := h.merges()
	require.Len(t, merges, 1)
	assert.Equal(t, 4, merges[0]["2025.3.15"])
	assert.Equal(t, 1, merges[0]["streak"])
	assert.Equal(t, docstore.ServerTimestamp, merges[0]["2025.3.updatedAt_15"])
}

func TestSetMoodToggleOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.SetMood(ctx, 2025, 3, 15, 4)
	require.NoError(t, err)
	p, err := h.c.SetMood(ctx, 2025, 3, 15, 4)
	require.NoError(t, err)
	assert.Equal(t, Day{}, h.c.Snapshot().GetDay(2025, 3, 15))

	h.clk.Advance(DefaultMoodDebounce)
	require.NoError(t, p.Wait(waitCtx(t)))
	// back where the remote already is
	assert.Zero(t, h.rec.Count())
}

func TestSetMoodToggleOffPersistsRemoval(t *testing.T) {
	h := newHarness(t)
	h.seed(t, docstore.Patch{"2025.3.15": 4, "2025.3.journal_15": "kept"})

	p, err := h.c.SetMood(context.Background(), 2025, 3, 15, 4)
	require.NoError(t, err)
	require.NoError(t, h.c.Flush(waitCtx(t)))
	require.NoError(t, p.Wait(waitCtx(t)))

	doc, err := h.mem.Get(context.Background(), docstore.UserKey("u1"))
	require.NoError(t, err)
	s, streak := Decode(doc)
	assert.Equal(t, "kept", s.GetDay(2025, 3, 15).Journal)
	assert.Zero(t, s.GetDay(2025, 3, 15).Mood)
	assert.Zero(t, streak)
}

func TestSetMoodCoalescesClicks(t *testing.T) {
	h := newHarness(t)
	var p *Pending
	for _, rank := range []int{1, 2, 3, 4, 5} {
		var err error
		p, err = h.c.SetMood(context.Background(), 2025, 3, 15, rank)
		require.NoError(t, err)
		h.clk.Advance(500 * time.Millisecond)
	}
	assert.Zero(t, h.rec.Count())

	h.clk.Advance(DefaultMoodDebounce)
	require.NoError(t, p.Wait(waitCtx(t)))
	merges := h.merges()
	require.Len(t, merges, 1)
	assert.Equal(t, 5, merges[0]["2025.3.15"])
}

func TestSetMoodRollsBackOnFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, docstore.Patch{"2025.3.14": 2})
	before := h.c.Snapshot()
	h.rec.FailWrites(errors.New("network down"))

	var rolled atomic.Bool
	h.c.Subscribe(func(ev Event) {
		if ev.Kind == EventRolledBack {
			rolled.Store(true)
		}
	})

	p, err := h.c.SetMood(context.Background(), 2025, 3, 15, 7)
	require.NoError(t, err)
	_, err = h.c.SetMood(context.Background(), 2025, 3, 15, 8)
	require.NoError(t, err)

	h.clk.Advance(DefaultMoodDebounce)
	err = p.Wait(waitCtx(t))
	assert.ErrorIs(t, err, apperr.ErrRemoteWriteFailed)
	assert.Same(t, before, h.c.Snapshot())
	assert.True(t, rolled.Load())
}

func TestSetMoodRollbackKeepsOtherDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.c.SetMood(ctx, 2025, 3, 15, 3)
	require.NoError(t, err)
	require.NoError(t, h.c.UpdateEntry(ctx, EntryUpdate{Year: 2025, Month: 3, Day: 14, Journal: String("other day")}))

	h.rec.FailWrites(errors.New("boom"))
	h.clk.Advance(DefaultMoodDebounce)
	require.Error(t, p.Wait(waitCtx(t)))

	s := h.c.Snapshot()
	assert.Equal(t, Day{}, s.GetDay(2025, 3, 15))
	assert.Equal(t, "other day", s.GetDay(2025, 3, 14).Journal)
}

func TestUpdateEntryRollbackRestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	h.seed(t, docstore.Patch{"2025.3.15": 4, "2025.3.journal_15": "old", "2025.3.16": 2})
	before := h.c.Snapshot()
	h.rec.FailWrites(errors.New("unavailable"))

	err := h.c.UpdateEntry(context.Background(), EntryUpdate{Year: 2025, Month: 3, Day: 15, Mood: Int(9), Journal: String("")})
	assert.ErrorIs(t, err, apperr.ErrRemoteWriteFailed)
	assert.True(t, before.Equal(h.c.Snapshot()))
	assert.Same(t, before, h.c.Snapshot())

	err = h.c.DeleteEntry(context.Background(), 2025, 3, 15)
	assert.ErrorIs(t, err, apperr.ErrRemoteWriteFailed)
	assert.Same(t, before, h.c.Snapshot())
}

func TestUpdateEntryRollbackIsPerField(t *testing.T) {
	s := NewStore().UpsertDay(2025, 3, 15, Patch{Mood: Int(4), Journal: String("old")})
	// another change to the mood landed while the journal write was out
	moved := s.UpsertDay(2025, 3, 15, Patch{Journal: String("new")}).UpsertDay(2025, 3, 15, Patch{Mood: Int(6)})

	got := restoreFields(moved, dayKey{2025, 3, 15}, s.GetDay(2025, 3, 15), false, true)
	assert.Equal(t, Day{Mood: 6, Journal: "old"}, got.GetDay(2025, 3, 15))

	// a field that did not exist before is not resurrected
	fresh := NewStore().UpsertDay(2025, 3, 15, Patch{Journal: String("typed")})
	got = restoreFields(fresh, dayKey{2025, 3, 15}, Day{}, false, true)
	assert.Equal(t, Day{}, got.GetDay(2025, 3, 15))
}

func TestUpdateEntryValidation(t *testing.T) {
	h := newHarness(t)
	err := h.c.UpdateEntry(context.Background(), EntryUpdate{Year: 2025, Month: 3, Day: 15})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	err = h.c.UpdateEntry(context.Background(), EntryUpdate{Year: 2025, Month: 3, Day: 15, Mood: Int(14)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = h.c.SetMood(context.Background(), 2025, 3, 15, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = h.c.SetMood(context.Background(), 2025, 3, 16, 3)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	err = h.c.DeleteEntry(context.Background(), 2025, 1, 30)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Zero(t, h.c.Snapshot().Len())
	assert.Zero(t, h.rec.Count())
}

func TestUnauthenticatedFailsBeforeLocalChange(t *testing.T) {
	h := newHarness(t)
	before := h.c.Snapshot()
	h.uid.Store("")

	_, err := h.c.SetMood(context.Background(), 2025, 3, 15, 3)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	err = h.c.UpdateEntry(context.Background(), EntryUpdate{Year: 2025, Month: 3, Day: 15, Journal: String("x")})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	err = h.c.DeleteEntry(context.Background(), 2025, 3, 15)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	assert.Same(t, before, h.c.Snapshot())
	assert.Zero(t, h.rec.Count())
}

func TestUpdateEntrySendsPendingMoodFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.c.SetMood(ctx, 2025, 3, 15, 3)
	require.NoError(t, err)
	require.NoError(t, h.c.UpdateEntry(ctx, EntryUpdate{Year: 2025, Month: 3, Day: 15, Journal: String("after the click")}))
	require.NoError(t, p.Wait(waitCtx(t)))

	merges := h.merges()
	require.Len(t, merges, 2)
	assert.Equal(t, 3, merges[0]["2025.3.15"])
	assert.Equal(t, "after the click", merges[1]["2025.3.journal_15"])
	assert.NotContains(t, merges[1], "streak")
	assert.Equal(t, Day{Mood: 3, Journal: "after the click"}, stripStamp(h.c.Snapshot().GetDay(2025, 3, 15)))
}

func TestWritesForOneDayDoNotOverlap(t *testing.T) {
	h := newHarness(t)
	release := h.rec.Hold()
	defer release()

	updateDone := make(chan error, 1)
	go func() {
		updateDone <- h.c.UpdateEntry(context.Background(), EntryUpdate{Year: 2025, Month: 3, Day: 15, Journal: String("first")})
	}()
	<-h.rec.Entered()

	var moodReturned atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.c.SetMood(context.Background(), 2025, 3, 15, 2)
		assert.NoError(t, err)
		moodReturned.Store(true)
	}()

	// another day is not held up
	_, err := h.c.SetMood(context.Background(), 2025, 3, 14, 5)
	require.NoError(t, err)

	assert.Never(t, moodReturned.Load, 50*time.Millisecond, 5*time.Millisecond)
	release()
	require.NoError(t, <-updateDone)
	wg.Wait()
	assert.Equal(t, Day{Mood: 2, Journal: "first"}, stripStamp(h.c.Snapshot().GetDay(2025, 3, 15)))
}

func TestDeleteEntryRemovesEveryField(t *testing.T) {
	h := newHarness(t)
	h.seed(t, docstore.Patch{"2025.3.15": 4, "2025.3.journal_15": "x", "2025.3.updatedAt_15": docstore.ServerTimestamp, "2025.3.14": 1})

	require.NoError(t, h.c.DeleteEntry(context.Background(), 2025, 3, 15))
	assert.Equal(t, Day{}, h.c.Snapshot().GetDay(2025, 3, 15))

	doc, err := h.mem.Get(context.Background(), docstore.UserKey("u1"))
	require.NoError(t, err)
	s, streak := Decode(doc)
	assert.Equal(t, Day{}, s.GetDay(2025, 3, 15))
	assert.Equal(t, 1, s.GetDay(2025, 3, 14).Mood)
	assert.Equal(t, 1, streak)
}

func TestEndToEndMoodAndStreak(t *testing.T) {
	for _, tc := range []struct {
		name       string
		yesterday  bool
		wantStreak int
	}{
		{"day 14 unset", false, 1},
		{"day 14 logged", true, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.yesterday {
				h.seed(t, docstore.Patch{"2025.3.14": 6})
			}
			p, err := h.c.SetMood(context.Background(), 2025, 3, 15, 4)
			require.NoError(t, err)
			assert.Equal(t, 4, h.c.Snapshot().GetDay(2025, 3, 15).Mood)

			h.clk.Advance(DefaultMoodDebounce)
			require.NoError(t, p.Wait(waitCtx(t)))
			assert.Equal(t, 4, h.c.Snapshot().GetDay(2025, 3, 15).Mood)
			assert.Equal(t, tc.wantStreak, h.c.Stats().Streak)

			doc, err := h.mem.Get(context.Background(), docstore.UserKey("u1"))
			require.NoError(t, err)
			_, streak := Decode(doc)
			assert.Equal(t, tc.wantStreak, streak)
		})
	}
}

func TestCloseFlushesAndRefusesChanges(t *testing.T) {
	h := newHarness(t)
	p, err := h.c.SetMood(context.Background(), 2025, 3, 15, 4)
	require.NoError(t, err)

	require.NoError(t, h.c.Close(waitCtx(t)))
	require.NoError(t, p.Wait(waitCtx(t)))
	assert.Len(t, h.merges(), 1)
	assert.Zero(t, h.c.PendingWrites())

	_, err = h.c.SetMood(context.Background(), 2025, 3, 14, 4)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestLoadMissingDocument(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(context.Background()))
	assert.Zero(t, h.c.Snapshot().Len())

	h.rec.FailReads(errors.New("timeout"))
	err := h.c.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRemoteReadFailed)
}

func stripStamp(d Day) Day {
	d.UpdatedAt = time.Time{}
	return d
}
