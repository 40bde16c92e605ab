// Package insight produces AI reflections on journal entries. Results are
// cached per user by exact entry text and never expire.
package insight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Placeholderer generates journal placeholders.
type Placeholderer interface {
	Placeholder(ctx context.Context) (string, error)
}

type modelNamer interface {
	Model() string
}

type Service struct {
	docs     docstore.Store
	analyzer Analyzer
	provider string
	clock    clock.Clock
	logger   *zap.Logger
	group    singleflight.Group
}

// NewService caches analyzer results in docs. A nil analyzer makes every
// miss fail with AnalysisFailed.
func NewService(docs docstore.Store, analyzer Analyzer, provider string, c clock.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, analyzer: analyzer, provider: provider, clock: clock.OrReal(c), logger: logger}
}

func cacheID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the insight for text, analyzing it on the first request.
// Concurrent requests for the same text share one analysis.
func (s *Service) Get(ctx context.Context, uid, text string) (models.Insight, error) {
	const op = "insight.get"
	if uid == "" {
		return models.Insight{}, apperr.Unauthenticated(op)
	}
	if text == "" {
		return models.Insight{}, apperr.Invalid(op, "journal entry is empty")
	}
	key := docstore.SubKey(uid, models.InsightsCollection, cacheID(text))

	if rec, ok := s.lookup(ctx, key, text); ok {
		return rec.Insight, nil
	}

	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		// a caller that lost the race may find the result already stored
		if rec, ok := s.lookup(ctx, key, text); ok {
			return rec.Insight, nil
		}
		return s.analyze(context.WithoutCancel(ctx), key, text)
	})
	if err != nil {
		return models.Insight{}, err
	}
	return v.(models.Insight), nil
}

func (s *Service) lookup(ctx context.Context, key docstore.Key, text string) (models.InsightRecord, bool) {
	var rec models.InsightRecord
	doc, err := s.docs.Get(ctx, key)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			s.logger.Warn("insight cache read failed", zap.String("uid", key.UserID), zap.Error(err))
		}
		return rec, false
	}
	if err := docstore.Decode(doc, &rec); err != nil {
		s.logger.Warn("insight cache entry unreadable", zap.String("uid", key.UserID), zap.Error(err))
		return rec, false
	}
	// digest collision: treat as a miss
	if rec.Text != text {
		return rec, false
	}
	return rec, true
}

func (s *Service) analyze(ctx context.Context, key docstore.Key, text string) (models.Insight, error) {
	const op = "insight.analyze"
	if s.analyzer == nil {
		return models.Insight{}, apperr.New(apperr.KindAnalysisFailed, op, "no AI provider configured")
	}
	ins, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.Warn("journal analysis failed", zap.String("uid", key.UserID), zap.Error(err))
		return models.Insight{}, apperr.Wrapf(apperr.KindAnalysisFailed, op, err, "Failed to generate insights. Please try again.")
	}
	rec := models.InsightRecord{
		Text:      text,
		Insight:   ins,
		Provider:  s.provider,
		CreatedAt: s.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if m, ok := s.analyzer.(modelNamer); ok {
		rec.Model = m.Model()
	}
	if err := s.docs.Replace(ctx, key, docstore.Document{
		"text":      rec.Text,
		"insight":   rec.Insight,
		"provider":  rec.Provider,
		"model":     rec.Model,
		"createdAt": rec.CreatedAt,
	}); err != nil {
		// the caller still gets the result; the next request re-analyzes
		s.logger.Warn("insight cache write failed", zap.String("uid", key.UserID), zap.Error(err))
	}
	return ins, nil
}

// Placeholder returns a generated journal placeholder, or the fallback
// when generation is unavailable or fails.
func (s *Service) Placeholder(ctx context.Context) string {
	p, ok := s.analyzer.(Placeholderer)
	if !ok {
		return FallbackPlaceholder
	}
	text, err := p.Placeholder(ctx)
	if err != nil {
		s.logger.Debug("placeholder generation failed", zap.Error(err))
		return FallbackPlaceholder
	}
	return text
}
