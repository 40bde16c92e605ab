// Package docstoretest wraps a docstore.Store to observe and disturb the
// writes made through it.
package docstoretest

import (
	"context"
	"sync"

	"github.com/moody-app/moody/internal/pkg/docstore"
)

// Call is one write seen by the Recorder.
type Call struct {
	Op    string
	Key   docstore.Key
	Patch docstore.Patch
}

// Recorder forwards to the wrapped store, recording writes. Writes can be
// made to fail or to block until released.
type Recorder struct {
	docstore.Store

	mu       sync.Mutex
	calls    []Call
	reads    int
	writeErr error
	readErr  error
	gate     chan struct{}
	entered  chan struct{}
}

func New(inner docstore.Store) *Recorder {
	return &Recorder{Store: inner}
}

// FailWrites makes every following write return err. nil clears it.
func (r *Recorder) FailWrites(err error) {
	r.mu.Lock()
	r.writeErr = err
	r.mu.Unlock()
}

// FailReads makes every following Get return err. nil clears it.
func (r *Recorder) FailReads(err error) {
	r.mu.Lock()
	r.readErr = err
	r.mu.Unlock()
}

// Hold blocks writes until the returned release func is called. Entered
// receives once per write that reaches the gate.
func (r *Recorder) Hold() (release func()) {
	r.mu.Lock()
	gate := make(chan struct{})
	r.gate = gate
	r.entered = make(chan struct{}, 64)
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.gate == gate {
				r.gate = nil
			}
			r.mu.Unlock()
			close(gate)
		})
	}
}

// Entered signals writes that are waiting on a Hold gate.
func (r *Recorder) Entered() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entered
}

// Calls returns a copy of the recorded writes.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Merges returns the recorded merge calls against key.
func (r *Recorder) Merges(key docstore.Key) []docstore.Patch {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []docstore.Patch
	for _, c := range r.calls {
		if c.Op == "merge" && c.Key == key {
			out = append(out, c.Patch)
		}
	}
	return out
}

// Count is the number of recorded writes.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *Recorder) before(ctx context.Context, c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	gate, entered, err := r.gate, r.entered, r.writeErr
	r.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		err = r.writeErr
		r.mu.Unlock()
	}
	return err
}

// Reads counts Get calls, failed ones included.
func (r *Recorder) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *Recorder) Get(ctx context.Context, key docstore.Key) (docstore.Document, error) {
	r.mu.Lock()
	r.reads++
	err := r.readErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Store.Get(ctx, key)
}

func (r *Recorder) Merge(ctx context.Context, key docstore.Key, patch docstore.Patch) error {
	cp := make(docstore.Patch, len(patch))
	for k, v := range patch {
		cp[k] = v
	}
	if err := r.before(ctx, Call{Op: "merge", Key: key, Patch: cp}); err != nil {
		return err
	}
	return r.Store.Merge(ctx, key, patch)
}

func (r *Recorder) Replace(ctx context.Context, key docstore.Key, doc docstore.Document) error {
	if err := r.before(ctx, Call{Op: "replace", Key: key}); err != nil {
		return err
	}
	return r.Store.Replace(ctx, key, doc)
}

func (r *Recorder) Remove(ctx context.Context, key docstore.Key) error {
	if err := r.before(ctx, Call{Op: "remove", Key: key}); err != nil {
		return err
	}
	return r.Store.Remove(ctx, key)
}
