package entry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
	"github.com/moody-app/moody/internal/pkg/debounce"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/moody-app/moody/internal/pkg/mood"
	"go.uber.org/zap"
)

// DefaultMoodDebounce coalesces rapid mood clicks into one write.
const DefaultMoodDebounce = 2 * time.Second

// Identity yields the signed-in user id, or "" once signed out.
type Identity interface {
	UserID() string
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func() string

func (f IdentityFunc) UserID() string { return f() }

type Options struct {
	MoodDebounce time.Duration
	Location     *time.Location
	Moods        *mood.Taxonomy
	Clock        clock.Clock
	Logger       *zap.Logger
}

type EventKind string

const (
	EventLoaded     EventKind = "loaded"
	EventApplied    EventKind = "applied"
	EventPersisted  EventKind = "persisted"
	EventRolledBack EventKind = "rolled_back"
)

// Event tells observers about a change to one day.
type Event struct {
	Kind  EventKind `json:"kind"`
	Year  int       `json:"year"`
	Month int       `json:"month"`
	Day   int       `json:"day"`
	Entry Day       `json:"entry"`
	Stats Stats     `json:"stats"`
	Err   string    `json:"error,omitempty"`
	// Seq orders events; observers may receive them out of order.
	Seq uint64 `json:"seq"`
}

// EntryUpdate edits a day. Nil fields are left alone; 0 / "" clear.
type EntryUpdate struct {
	Year    int
	Month   int
	Day     int
	Mood    *int
	Journal *string
}

// Pending is the outcome of a debounced mood write.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending { return &Pending{done: make(chan struct{})} }

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the write has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the write settles and returns its error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type dayKey struct{ y, m, d int }

func (k dayKey) String() string { return datekey.Key(k.y, k.m, k.d) }

// slot tracks the unsettled write of one day. A slot is either dirty (a
// mood change waits on the debounce timer) or in flight.
type slot struct {
	dirty    bool
	rank     int
	baseline Day
	// before is the store ahead of the first coalesced click, after the
	// store right after the latest one. before is nil once another change
	// interleaved, which rules out restoring by reference.
	before   *Store
	after    *Store
	pending  *Pending
	inflight chan struct{}
}

// Coordinator owns a user's Store. Changes apply locally first, then
// persist; a failed write restores the day to its last settled state.
// Writes for one day never overlap.
type Coordinator struct {
	id     Identity
	docs   docstore.Store
	clock  clock.Clock
	loc    *time.Location
	moods  *mood.Taxonomy
	window time.Duration
	logger *zap.Logger
	deb    *debounce.Debouncer

	mu     sync.Mutex
	store  *Store
	slots  map[dayKey]*slot
	closed bool
	seq    uint64

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

func NewCoordinator(id Identity, docs docstore.Store, opts Options) *Coordinator {
	c := &Coordinator{
		id:        id,
		docs:      docs,
		clock:     clock.OrReal(opts.Clock),
		loc:       opts.Location,
		moods:     opts.Moods,
		window:    opts.MoodDebounce,
		logger:    opts.Logger,
		store:     NewStore(),
		slots:     map[dayKey]*slot{},
		observers: map[int]func(Event){},
	}
	if c.moods == nil {
		c.moods = mood.Default
	}
	if c.window == 0 {
		c.window = DefaultMoodDebounce
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	c.deb = debounce.New(c.clock)
	return c
}

func (c *Coordinator) now() time.Time { return clock.InZone(c.clock.Now(), c.loc) }

// Now is the current time in the coordinator's location.
func (c *Coordinator) Now() time.Time { return c.now() }

// Today is the current calendar day in the coordinator's location.
func (c *Coordinator) Today() (year, month, day int) {
	t := c.now()
	return t.Year(), int(t.Month()) - 1, t.Day()
}

// Snapshot returns the current store. Stores are immutable.
func (c *Coordinator) Snapshot() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Stats computes the dashboard figures from the current store.
func (c *Coordinator) Stats() Stats {
	return ComputeStats(c.Snapshot(), c.now())
}

// Subscribe registers fn for every event. Observers run on the goroutine
// that caused the event and must not block.
func (c *Coordinator) Subscribe(fn func(Event)) (cancel func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()
	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Coordinator) emit(ev Event) {
	c.obsMu.Lock()
	fns := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Coordinator) eventLocked(kind EventKind, k dayKey, err error) Event {
	c.seq++
	ev := Event{
		Seq:   c.seq,
		Kind:  kind,
		Year:  k.y,
		Month: k.m,
		Day:   k.d,
		Entry: c.store.GetDay(k.y, k.m, k.d),
		Stats: ComputeStats(c.store, c.now()),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	return ev
}

// Load replaces the working replica with the user document. A missing
// document loads as an empty store. Call it before any mutation.
func (c *Coordinator) Load(ctx context.Context) error {
	const op = "entry.load"
	uid := c.id.UserID()
	if uid == "" {
		return apperr.Unauthenticated(op)
	}
	doc, err := c.docs.Get(ctx, docstore.UserKey(uid))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return classify(apperr.KindRemoteReadFailed, op, err)
	}
	s, _ := Decode(doc)

	c.mu.Lock()
	c.store = s
	c.seq++
	ev := Event{Kind: EventLoaded, Stats: ComputeStats(s, c.now()), Seq: c.seq}
	c.mu.Unlock()
	c.emit(ev)
	return nil
}

// lockDay waits until day k has no write in flight and returns holding
// c.mu. With flush set a pending mood write is sent first; without it a
// pending write is left for the caller to coalesce with.
func (c *Coordinator) lockDay(ctx context.Context, op string, k dayKey, flush bool) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return apperr.Unauthenticated(op)
		}
		s := c.slots[k]
		if s == nil || (s.dirty && !flush) {
			return nil
		}
		if s.dirty {
			c.mu.Unlock()
			c.deb.Cancel(k.String())
			// the outcome belongs to the earlier click and is reported
			// through its Pending
			_ = c.persistMood(context.WithoutCancel(ctx), k)
			continue
		}
		wait := s.inflight
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindRemoteWriteFailed, op, ctx.Err())
		}
	}
}

// SetMood selects rank for the day, or clears the mood when rank is already
// selected. The store changes before SetMood returns; the write follows
// after the debounce window and its result is reported by the Pending.
func (c *Coordinator) SetMood(ctx context.Context, year, month, day, rank int) (*Pending, error) {
	const op = "entry.set_mood"
	if c.id.UserID() == "" {
		return nil, apperr.Unauthenticated(op)
	}
	if !c.moods.Valid(rank) {
		return nil, apperr.Invalid(op, fmt.Sprintf("mood rank %d out of range 1..%d", rank, c.moods.Len()))
	}
	k := dayKey{year, month, day}
	if err := c.checkDate(op, k); err != nil {
		return nil, err
	}
	if err := c.lockDay(ctx, op, k, false); err != nil {
		return nil, err
	}

	cur := c.store.GetDay(year, month, day)
	next := rank
	if cur.Mood == rank {
		next = 0
	}
	s := c.slots[k]
	if s == nil {
		s = &slot{baseline: cur, before: c.store, pending: newPending()}
		c.slots[k] = s
	} else if s.before != nil && c.store != s.after {
		s.before = nil
	}
	s.dirty = true
	s.rank = next
	c.store = c.store.UpsertDay(year, month, day, Patch{Mood: &next, UpdatedAt: c.now()})
	s.after = c.store
	p := s.pending
	ev := c.eventLocked(EventApplied, k, nil)
	c.mu.Unlock()

	c.emit(ev)
	c.deb.Trigger(k.String(), c.window, func() {
		_ = c.persistMood(context.Background(), k)
	})
	return p, nil
}

// persistMood sends the coalesced mood change of day k, if any.
func (c *Coordinator) persistMood(ctx context.Context, k dayKey) error {
	const op = "entry.set_mood"
	c.mu.Lock()
	s := c.slots[k]
	if s == nil || !s.dirty {
		c.mu.Unlock()
		return nil
	}
	s.dirty = false
	done := make(chan struct{})
	s.inflight = done
	uid := c.id.UserID()
	// clicking a mood and clicking it off again leaves the remote as is
	unchanged := s.rank == s.baseline.Mood
	stats := ComputeStats(c.store, c.now())
	patch := fieldPatch(k.y, k.m, k.d, Patch{Mood: &s.rank}, c.store.GetDay(k.y, k.m, k.d), &stats.Streak)
	c.mu.Unlock()

	var err error
	switch {
	case unchanged:
	case uid == "":
		err = apperr.Unauthenticated(op)
	default:
		err = c.write(ctx, op, uid, patch)
	}

	c.mu.Lock()
	kind := EventPersisted
	if err != nil {
		kind = EventRolledBack
		if s.before != nil && c.store == s.after {
			c.store = s.before
		} else {
			c.store = restoreFields(c.store, k, s.baseline, true, false)
		}
	}
	if c.slots[k] == s {
		delete(c.slots, k)
	}
	close(done)
	ev := c.eventLocked(kind, k, err)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("mood write failed, rolled back",
			zap.String("uid", uid), zap.String("date", k.String()), zap.Error(err))
	}
	if !unchanged || err != nil {
		c.emit(ev)
	}
	s.pending.resolve(err)
	return err
}

// UpdateEntry sets the given fields of a day and persists them at once.
// A pending mood write for the day is sent first.
func (c *Coordinator) UpdateEntry(ctx context.Context, u EntryUpdate) error {
	const op = "entry.update"
	if c.id.UserID() == "" {
		return apperr.Unauthenticated(op)
	}
	if u.Mood == nil && u.Journal == nil {
		return apperr.Invalid(op, "nothing to update, delete the entry instead")
	}
	if u.Mood != nil && *u.Mood != 0 && !c.moods.Valid(*u.Mood) {
		return apperr.Invalid(op, fmt.Sprintf("mood rank %d out of range 1..%d", *u.Mood, c.moods.Len()))
	}
	k := dayKey{u.Year, u.Month, u.Day}
	if err := c.checkDate(op, k); err != nil {
		return err
	}
	return c.apply(ctx, op, k, Patch{Mood: u.Mood, Journal: u.Journal}, false)
}

// SaveJournal stores text as the day's journal; "" removes it.
func (c *Coordinator) SaveJournal(ctx context.Context, year, month, day int, text string) error {
	return c.UpdateEntry(ctx, EntryUpdate{Year: year, Month: month, Day: day, Journal: &text})
}

// DeleteEntry removes the day's mood, journal and update marker.
func (c *Coordinator) DeleteEntry(ctx context.Context, year, month, day int) error {
	const op = "entry.delete"
	if c.id.UserID() == "" {
		return apperr.Unauthenticated(op)
	}
	k := dayKey{year, month, day}
	if err := c.checkDate(op, k); err != nil {
		return err
	}
	return c.apply(ctx, op, k, Patch{}, true)
}

// checkDate rejects impossible dates and days after today.
func (c *Coordinator) checkDate(op string, k dayKey) error {
	if k.m < 0 || k.m > 11 || k.d < 1 || k.d > datekey.DaysInMonth(k.y, k.m) {
		return apperr.Invalid(op, fmt.Sprintf("no such date %d-%d-%d", k.y, k.m+1, k.d))
	}
	if datekey.IsFuture(k.y, k.m, k.d, c.now()) {
		return apperr.Invalid(op, k.String()+" is in the future")
	}
	return nil
}

func (c *Coordinator) apply(ctx context.Context, op string, k dayKey, p Patch, remove bool) error {
	if err := c.lockDay(ctx, op, k, true); err != nil {
		return err
	}
	before := c.store
	prev := before.GetDay(k.y, k.m, k.d)
	var next *Store
	if remove {
		next = before.DeleteDay(k.y, k.m, k.d)
	} else {
		p.UpdatedAt = c.now()
		next = before.UpsertDay(k.y, k.m, k.d, p)
	}
	c.store = next
	stats := ComputeStats(next, c.now())
	var patch docstore.Patch
	if remove {
		patch = deletePatch(k.y, k.m, k.d, stats.Streak)
	} else {
		var streak *int
		if p.Mood != nil {
			streak = &stats.Streak
		}
		patch = fieldPatch(k.y, k.m, k.d, p, next.GetDay(k.y, k.m, k.d), streak)
	}
	done := make(chan struct{})
	s := &slot{inflight: done}
	c.slots[k] = s
	uid := c.id.UserID()
	ev := c.eventLocked(EventApplied, k, nil)
	c.mu.Unlock()
	c.emit(ev)

	var err error
	if uid == "" {
		err = apperr.Unauthenticated(op)
	} else {
		err = c.write(ctx, op, uid, patch)
	}

	c.mu.Lock()
	kind := EventPersisted
	if err != nil {
		kind = EventRolledBack
		if c.store == next {
			c.store = before
		} else {
			c.store = restoreFields(c.store, k, prev, remove || p.Mood != nil, remove || p.Journal != nil)
		}
	}
	if c.slots[k] == s {
		delete(c.slots, k)
	}
	close(done)
	ev = c.eventLocked(kind, k, err)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("entry write failed, rolled back",
			zap.String("op", op), zap.String("uid", uid), zap.String("date", k.String()), zap.Error(err))
	}
	c.emit(ev)
	return err
}

func (c *Coordinator) write(ctx context.Context, op, uid string, patch docstore.Patch) error {
	err := c.docs.Merge(ctx, docstore.UserKey(uid), patch)
	return classify(apperr.KindRemoteWriteFailed, op, err)
}

// restoreFields puts the named fields of day k back to prev.
func restoreFields(s *Store, k dayKey, prev Day, mood, journal bool) *Store {
	cur := s.GetDay(k.y, k.m, k.d)
	if mood {
		cur.Mood = prev.Mood
	}
	if journal {
		cur.Journal = prev.Journal
	}
	cur.UpdatedAt = prev.UpdatedAt
	return s.RestoreDay(k.y, k.m, k.d, cur)
}

// classify keeps an already classified error and files anything else
// under kind.
func classify(kind apperr.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Wrap(kind, op, err)
}

// Flush sends every pending mood write now and waits for all writes in
// flight. It returns the joined write errors.
func (c *Coordinator) Flush(ctx context.Context) error {
	var errs []error
	for {
		c.mu.Lock()
		var dirty []dayKey
		var waits []chan struct{}
		for k, s := range c.slots {
			if s.dirty {
				dirty = append(dirty, k)
			} else {
				waits = append(waits, s.inflight)
			}
		}
		c.mu.Unlock()
		if len(dirty) == 0 && len(waits) == 0 {
			return errors.Join(errs...)
		}
		for _, k := range dirty {
			c.deb.Cancel(k.String())
			if err := c.persistMood(ctx, k); err != nil {
				errs = append(errs, err)
			}
		}
		for _, w := range waits {
			select {
			case <-w:
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			}
		}
	}
}

// PendingWrites is the number of days with an unsettled write.
func (c *Coordinator) PendingWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Close refuses further changes, flushes pending writes and stops the
// debounce timers.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	err := c.Flush(ctx)
	c.deb.Stop()
	c.obsMu.Lock()
	c.observers = map[int]func(Event){}
	c.obsMu.Unlock()
	return err
}
