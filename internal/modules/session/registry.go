package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultIdleTimeout = 30 * time.Minute

	sweepEvery = time.Minute
)

// ErrClosed is returned by Get once the registry has shut down.
var ErrClosed = errors.New("session registry closed")

// Registry owns the sessions of all signed-in users.
type Registry struct {
	deps  Deps
	idle  time.Duration
	clock clock.Clock
	log   *zap.Logger
	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(deps Deps, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Clock = clock.OrReal(deps.Clock)
	return &Registry{
		deps:     deps,
		idle:     idle,
		clock:    deps.Clock,
		log:      deps.Logger,
		sessions: map[string]*Session{},
	}
}

// Get returns the session of uid, loading the user's entries on first use.
func (r *Registry) Get(ctx context.Context, uid string) (*Session, error) {
	const op = "session.get"
	if uid == "" {
		return nil, apperr.Unauthenticated(op)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[uid]; ok {
		// under r.mu so Sweep cannot pick it between here and use
		s.touch()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(uid, func() (interface{}, error) {
		r.mu.Lock()
		if s, ok := r.sessions[uid]; ok {
			s.touch()
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := newSession(context.WithoutCancel(ctx), uid, r.deps)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = s.Close(context.WithoutCancel(ctx))
			return nil, ErrClosed
		}
		s.touch()
		r.sessions[uid] = s
		r.mu.Unlock()
		r.log.Info("session opened", zap.String("uid", uid), zap.String("session", s.ID))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Lookup returns the live session of uid without creating one.
func (r *Registry) Lookup(uid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[uid]
	return s, ok
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove signs uid out, flushing its session. Removing a user without a
// session succeeds.
func (r *Registry) Remove(ctx context.Context, uid string) error {
	r.mu.Lock()
	s, ok := r.sessions[uid]
	delete(r.sessions, uid)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	err := s.Close(ctx)
	r.log.Info("session closed", zap.String("uid", uid), zap.String("session", s.ID), zap.Error(err))
	return err
}

// Sweep closes sessions idle for longer than the timeout. Sessions with an
// open event stream are kept.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.clock.Now().Add(-r.idle)
	r.mu.Lock()
	var stale []*Session
	for uid, s := range r.sessions {
		if s.streams.Load() > 0 || s.idleSince().After(cutoff) {
			continue
		}
		stale = append(stale, s)
		delete(r.sessions, uid)
	}
	r.mu.Unlock()

	for _, s := range stale {
		if err := s.Close(ctx); err != nil {
			r.log.Warn("idle session flush failed", zap.String("uid", s.uid), zap.Error(err))
			continue
		}
		r.log.Debug("idle session evicted", zap.String("uid", s.uid))
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	t := r.clock.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			r.Sweep(ctx)
		}
	}
}

// Close flushes and closes every session. Later Gets fail.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	all := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
