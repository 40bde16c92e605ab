// Package memories lists, uploads and deletes the photos attached to
// calendar days. Month listings are read through a redis cache.
package memories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
	appredis "github.com/moody-app/moody/internal/pkg/redis"
)

const (
	DefaultCacheTTL = 7 * 24 * time.Hour
	cachePrefix     = "moody:memories:"
)

type cacheEntry struct {
	Data []models.Memory `json:"data"`
	// unix milliseconds of the write
	Timestamp int64 `json:"timestamp"`
}

// Cache holds month listings per user. Freshness is judged against the
// injected clock; the redis TTL only reclaims space.
type Cache struct {
	rdb   *appredis.Client
	clock clock.Clock
	ttl   time.Duration
}

func NewCache(rdb *appredis.Client, c clock.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, clock: clock.OrReal(c), ttl: ttl}
}

func cacheKey(uid string, year, month0 int) string {
	return cachePrefix + uid + ":" + datekey.YearMonth(year, month0)
}

// Get returns the cached listing when one younger than the TTL exists.
func (c *Cache) Get(ctx context.Context, uid string, year, month0 int) ([]models.Memory, bool, error) {
	key := cacheKey(uid, year, month0)
	raw, ok, err := c.rdb.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var e cacheEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		_ = c.rdb.Del(ctx, key)
		return nil, false, nil
	}
	if c.clock.Now().UnixMilli()-e.Timestamp >= c.ttl.Milliseconds() {
		_ = c.rdb.Del(ctx, key)
		return nil, false, nil
	}
	if e.Data == nil {
		e.Data = []models.Memory{}
	}
	return e.Data, true, nil
}

// Put stores items as the listing of the month, stamped now.
func (c *Cache) Put(ctx context.Context, uid string, year, month0 int, items []models.Memory) error {
	if items == nil {
		items = []models.Memory{}
	}
	b, err := json.Marshal(cacheEntry{Data: items, Timestamp: c.clock.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(uid, year, month0), b, c.ttl)
}

// Invalidate drops the listing so the next read goes to the store.
func (c *Cache) Invalidate(ctx context.Context, uid string, year, month0 int) error {
	return c.rdb.Del(ctx, cacheKey(uid, year, month0))
}

// RemoveCached drops one item from a cached listing in a single redis
// transaction, keeping the write stamp. A missing entry is left alone.
func (c *Cache) RemoveCached(ctx context.Context, uid string, year, month0 int, publicID string) error {
	return c.rdb.Update(ctx, cacheKey(uid, year, month0), func(cur string, ok bool) (string, bool, error) {
		if !ok {
			return "", false, nil
		}
		var e cacheEntry
		if err := json.Unmarshal([]byte(cur), &e); err != nil {
			return "", false, err
		}
		kept := make([]models.Memory, 0, len(e.Data))
		for _, m := range e.Data {
			if m.PublicID != publicID {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(e.Data) {
			return "", false, nil
		}
		e.Data = kept
		b, err := json.Marshal(e)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	})
}
