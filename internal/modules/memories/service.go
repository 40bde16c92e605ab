package memories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/moody-app/moody/internal/pkg/photostore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxSize   = 7 << 20
	DefaultMaxPerDay = 4
	uploadWorkers    = 4
)

// ErrNotOwner marks a delete aimed outside the caller's folder.
var ErrNotOwner = errors.New("cannot delete this resource")

// File is one photo from an upload request.
type File struct {
	Name string
	Data []byte
}

type Options struct {
	MaxSize   int64
	MaxPerDay int
	Location  *time.Location
	Clock     clock.Clock
	Logger    *zap.Logger
}

type Service struct {
	docs   docstore.Store
	photos photostore.Store
	cache  *Cache
	opts   Options
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(docs docstore.Store, photos photostore.Store, cache *Cache, opts Options) *Service {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxPerDay <= 0 {
		opts.MaxPerDay = DefaultMaxPerDay
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Service{docs: docs, photos: photos, cache: cache, opts: opts, clock: clock.OrReal(opts.Clock), logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Service) now() time.Time { return s.clock.Now().In(s.opts.Location) }

func userPrefix(uid string) string { return "moody/users/" + uid + "/" }

func monthKey(uid string, year, month0 int) docstore.Key {
	return docstore.SubKey(uid, models.MemoriesCollection, datekey.YearMonth(year, month0))
}

// List returns the photos of a month, cached for the TTL. Months after the
// current one are empty without a lookup.
func (s *Service) List(ctx context.Context, uid string, year, month0 int) ([]models.Memory, error) {
	const op = "memories.list"
	if uid == "" {
		return nil, apperr.Unauthenticated(op)
	}
	if month0 < 0 || month0 > 11 {
		return nil, apperr.Invalid(op, "month out of range")
	}
	if datekey.IsFutureMonth(year, month0, s.now()) {
		return []models.Memory{}, nil
	}
	if items, ok, err := s.cache.Get(ctx, uid, year, month0); err != nil {
		s.logger.Warn("memories cache read failed", zap.String("uid", uid), zap.Error(err))
	} else if ok {
		return items, nil
	}

	month, err := s.fetch(ctx, uid, year, month0)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
		month = models.MemoryMonth{Items: []models.Memory{}}
	}
	if err := s.cache.Put(ctx, uid, year, month0, month.Items); err != nil {
		s.logger.Warn("memories cache write failed", zap.String("uid", uid), zap.Error(err))
	}
	return month.Items, nil
}

func (s *Service) fetch(ctx context.Context, uid string, year, month0 int) (models.MemoryMonth, error) {
	var month models.MemoryMonth
	doc, err := s.docs.Get(ctx, monthKey(uid, year, month0))
	if err != nil {
		return month, err
	}
	month.Month, _ = doc["month"].(string)
	if items, ok := doc["items"]; ok && items != nil {
		if err := docstore.Decode(items, &month.Items); err != nil {
			return month, apperr.Wrap(apperr.KindRemoteReadFailed, "memories.fetch", err)
		}
	}
	if month.Items == nil {
		month.Items = []models.Memory{}
	}
	return month, nil
}

// Upload stores photos for a day of the current month and appends them to
// the month bucket.
func (s *Service) Upload(ctx context.Context, uid string, day int, files []File) ([]models.Memory, error) {
	const op = "memories.upload"
	if uid == "" {
		return nil, apperr.Unauthenticated(op)
	}
	if len(files) == 0 {
		return nil, apperr.Invalid(op, "no photos")
	}
	now := s.now()
	year, month0 := now.Year(), int(now.Month())-1
	if day < 1 || day > datekey.DaysInMonth(year, month0) || day > now.Day() {
		return nil, apperr.Invalid(op, "day is not part of this month so far")
	}

	types := make([]*mimetype.MIME, len(files))
	for i, f := range files {
		if int64(len(f.Data)) > s.opts.MaxSize {
			return nil, apperr.Invalid(op, fmt.Sprintf("%s: image must be less than %dMB", f.Name, s.opts.MaxSize>>20))
		}
		mt := mimetype.Detect(f.Data)
		if !strings.HasPrefix(mt.String(), "image/") {
			return nil, apperr.Invalid(op, fmt.Sprintf("%s: only image files are allowed", f.Name))
		}
		types[i] = mt
	}

	month, err := s.fetch(ctx, uid, year, month0)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}
	taken := 0
	for _, m := range month.Items {
		if m.Day == day {
			taken++
		}
	}
	if taken+len(files) > s.opts.MaxPerDay {
		return nil, apperr.Invalid(op, fmt.Sprintf("maximum %d photos per day", s.opts.MaxPerDay))
	}

	ym := datekey.YearMonth(year, month0)
	items := make([]models.Memory, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for i := range files {
		g.Go(func() error {
			key := userPrefix(uid) + ym + "/" + uuid.NewString() + types[i].Extension()
			obj, err := s.photos.Upload(gctx, key, files[i].Data, types[i].String())
			if err != nil {
				return err
			}
			items[i] = models.Memory{Day: day, ImageURL: obj.URL, PublicID: obj.Key, CreatedAt: now.UTC().Truncate(time.Millisecond)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(uid, items)
		return nil, apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}

	union := make([]interface{}, len(items))
	for i := range items {
		union[i] = items[i]
	}
	err = s.docs.Merge(ctx, monthKey(uid, year, month0), docstore.Patch{
		"month": ym,
		"items": docstore.ArrayUnion(union...),
	})
	if err != nil {
		s.discard(uid, items)
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, uid, year, month0); err != nil {
		s.logger.Warn("memories cache invalidate failed", zap.String("uid", uid), zap.Error(err))
	}
	return items, nil
}

// discard removes objects of a failed upload.
func (s *Service) discard(uid string, items []models.Memory) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, m := range items {
		if m.PublicID == "" {
			continue
		}
		if err := s.photos.Delete(ctx, m.PublicID); err != nil {
			s.logger.Warn("orphaned memory photo", zap.String("uid", uid), zap.String("key", m.PublicID), zap.Error(err))
		}
	}
}

// Delete removes a photo from storage and from its month bucket. The
// bucket is removed with its last item.
func (s *Service) Delete(ctx context.Context, uid, publicID, yearMonth string) error {
	const op = "memories.delete"
	if uid == "" {
		return apperr.Unauthenticated(op)
	}
	if publicID == "" || yearMonth == "" {
		return apperr.Invalid(op, "Missing required fields: publicId and yearMonth")
	}
	year, month0, err := datekey.ParseYearMonth(yearMonth)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalid, op, err)
	}
	if !strings.HasPrefix(publicID, userPrefix(uid)) {
		return apperr.Wrap(apperr.KindUnauthenticated, op, ErrNotOwner)
	}

	if err := s.photos.Delete(ctx, publicID); err != nil {
		return apperr.Wrapf(apperr.KindRemoteWriteFailed, op, err, "failed to delete photo")
	}

	month, err := s.fetch(ctx, uid, year, month0)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound(op, "Memory document not found")
		}
		return s.partial(uid, publicID, err)
	}
	kept := make([]models.Memory, 0, len(month.Items))
	for _, m := range month.Items {
		if m.PublicID != publicID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(month.Items) {
		return apperr.NotFound(op, "Memory item not found in document")
	}

	key := monthKey(uid, year, month0)
	if len(kept) == 0 {
		err = s.docs.Remove(ctx, key)
	} else {
		err = s.docs.Replace(ctx, key, docstore.Document{"month": yearMonth, "items": kept})
	}
	if err != nil {
		return s.partial(uid, publicID, err)
	}
	if err := s.cache.RemoveCached(ctx, uid, year, month0, publicID); err != nil {
		s.logger.Warn("memories cache update failed", zap.String("uid", uid), zap.Error(err))
		_ = s.cache.Invalidate(ctx, uid, year, month0)
	}
	return nil
}

func (s *Service) partial(uid, publicID string, err error) error {
	s.logger.Error("memory photo removed but index update failed",
		zap.String("uid", uid), zap.String("key", publicID), zap.Error(err))
	return apperr.Wrapf(apperr.KindPartialFailure, "memories.delete", err,
		"Partial deletion: image removed but database update failed")
}
