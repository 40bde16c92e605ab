package insight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/moody-app/moody/internal/pkg/docstore/docstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	calls   atomic.Int32
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (models.Insight, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return models.Insight{}, f.err
	}
	return models.Insight{
		Mood:     "Good",
		Triggers: []string{"walk"},
		Insight:  "You noticed: " + text,
		ProTip:   "Walk again tomorrow.",
		Headline: "Fresh air",
	}, nil
}

func (f *fakeAnalyzer) Model() string { return "fake-1" }

func (f *fakeAnalyzer) Placeholder(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "How did the light look today? 🌅", nil
}

func newService(t *testing.T, a Analyzer) (*Service, *docstoretest.Recorder) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC))
	rec := docstoretest.New(docstore.NewMemory(clk))
	return NewService(rec, a, "openai", clk, nil), rec
}

func TestGetCachesByExactText(t *testing.T) {
	a := &fakeAnalyzer{}
	svc, rec := newService(t, a)
	ctx := context.Background()

	first, err := svc.Get(ctx, "u1", "I went for a walk")
	require.NoError(t, err)
	assert.Equal(t, "Good", first.Mood)

	again, err := svc.Get(ctx, "u1", "I went for a walk")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.EqualValues(t, 1, a.calls.Load())

	other, err := svc.Get(ctx, "u1", "I went for a walk.")
	require.NoError(t, err)
	assert.Equal(t, "You noticed: I went for a walk.", other.Insight)
	assert.EqualValues(t, 2, a.calls.Load())

	doc, err := rec.Get(ctx, docstore.SubKey("u1", models.InsightsCollection, cacheID("I went for a walk")))
	require.NoError(t, err)
	var stored models.InsightRecord
	require.NoError(t, docstore.Decode(doc, &stored))
	assert.Equal(t, "I went for a walk", stored.Text)
	assert.Equal(t, "fake-1", stored.Model)
	assert.Equal(t, "openai", stored.Provider)
}

func TestGetIgnoresEntryForDifferentText(t *testing.T) {
	a := &fakeAnalyzer{}
	svc, rec := newService(t, a)
	ctx := context.Background()

	key := docstore.SubKey("u1", models.InsightsCollection, cacheID("today"))
	require.NoError(t, rec.Replace(ctx, key, docstore.Document{
		"text":    "something else",
		"insight": models.Insight{Mood: "Sad", Insight: "stale"},
	}))

	got, err := svc.Get(ctx, "u1", "today")
	require.NoError(t, err)
	assert.Equal(t, "Good", got.Mood)
	assert.EqualValues(t, 1, a.calls.Load())
}

func TestGetFailureLeavesCacheEmpty(t *testing.T) {
	a := &fakeAnalyzer{err: errors.New("model overloaded")}
	svc, rec := newService(t, a)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1", "rough day")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAnalysisFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Failed to generate insights")

	_, err = rec.Get(ctx, docstore.SubKey("u1", models.InsightsCollection, cacheID("rough day")))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	a.err = nil
	got, err := svc.Get(ctx, "u1", "rough day")
	require.NoError(t, err)
	assert.Equal(t, "Good", got.Mood)
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestGetSharesConcurrentAnalysis(t *testing.T) {
	a := &fakeAnalyzer{entered: make(chan struct{}, 8), release: make(chan struct{})}
	svc, _ := newService(t, a)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]models.Insight, 5)
	errs := make([]error, 5)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = svc.Get(ctx, "u1", "same words")
	}
	wg.Add(1)
	go run(0)
	<-a.entered
	for i := 1; i < 5; i++ {
		wg.Add(1)
		go run(i)
	}
	close(a.release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, a.calls.Load())
}

func TestGetRejectsBadInput(t *testing.T) {
	svc, _ := newService(t, &fakeAnalyzer{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1", "")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = svc.Get(ctx, "", "text")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	none, _ := newService(t, nil)
	_, err = none.Get(ctx, "u1", "text")
	assert.Equal(t, apperr.KindAnalysisFailed, apperr.KindOf(err))
}

func TestGetStillAnswersWhenCacheWriteFails(t *testing.T) {
	a := &fakeAnalyzer{}
	svc, rec := newService(t, a)
	rec.FailWrites(errors.New("mongo down"))

	got, err := svc.Get(context.Background(), "u1", "ok day")
	require.NoError(t, err)
	assert.Equal(t, "Good", got.Mood)
}

func TestPlaceholder(t *testing.T) {
	a := &fakeAnalyzer{}
	svc, _ := newService(t, a)
	assert.Equal(t, "How did the light look today? 🌅", svc.Placeholder(context.Background()))

	a.err = errors.New("quota")
	assert.Equal(t, FallbackPlaceholder, svc.Placeholder(context.Background()))

	none, _ := newService(t, nil)
	assert.Equal(t, FallbackPlaceholder, none.Placeholder(context.Background()))
}
