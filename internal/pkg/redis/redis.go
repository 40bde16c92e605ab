// Package redis wraps go-redis for the memories cache and the request
// rate limiter.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned by Update when the key changed underneath the
// transaction on every attempt.
var ErrConflict = errors.New("redis: concurrent update")

const updateAttempts = 5

// Client wraps go-redis for the application.
type Client struct {
	rdb *redis.Client
}

// Options mirrors the redis config section. URL wins when set.
type Options struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// Connect creates a Redis client and verifies connectivity.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	var ro *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	}

	rdb := redis.NewClient(ro)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Raw returns the underlying redis.Client for advanced usage.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }

// Set stores a value with optional TTL (0 = no expiry).
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a string value. Returns ("", false, nil) if key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Hit counts one request against key and returns the count inside the
// current window. The window starts with the first hit.
func (c *Client) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Update rewrites key under WATCH. fn receives the current value (ok is
// false when absent) and returns the replacement; keep=false leaves the key
// untouched. The existing TTL is preserved. Conflicting writers retry.
func (c *Client) Update(ctx context.Context, key string, fn func(cur string, ok bool) (next string, keep bool, err error)) error {
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}
		next, keep, err := fn(cur, ok)
		if err != nil || !keep {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, next, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}
	for i := 0; i < updateAttempts; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}
