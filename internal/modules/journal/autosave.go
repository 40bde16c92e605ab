// Package journal buffers journal edits and saves them after a quiet
// period. Typed and dictated input use different windows; voice stop and
// page exit flush at once.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/moody-app/moody/internal/modules/beacon"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
	"github.com/moody-app/moody/internal/pkg/debounce"
	"go.uber.org/zap"
)

const (
	DefaultTypedWindow  = 800 * time.Millisecond
	DefaultVoiceWindow  = 3 * time.Second
	DefaultSavedDisplay = 2 * time.Second

	saveKey  = "save"
	decayKey = "decay"
)

type State int

const (
	Idle State = iota
	PendingDebounce
	Saving
	Saved
)

func (s State) String() string {
	switch s {
	case PendingDebounce:
		return "pending"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Source int

const (
	SourceTyped Source = iota
	SourceVoice
)

// ParseSource maps "voice" to SourceVoice and anything else to SourceTyped.
func ParseSource(s string) Source {
	if s == "voice" {
		return SourceVoice
	}
	return SourceTyped
}

// Saver persists the journal text of a day. "" removes it.
type Saver interface {
	SaveJournal(ctx context.Context, year, month, day int, text string) error
}

// Target is the day whose journal is being edited.
type Target struct {
	Year, Month, Day int
}

func (t Target) String() string { return datekey.Key(t.Year, t.Month, t.Day) }

// Status is what observers see after every transition.
type Status struct {
	State     State  `json:"state"`
	Date      string `json:"date"`
	Text      string `json:"text"`
	Unsaved   bool   `json:"unsaved"`
	Dictating bool   `json:"dictating"`
	Interim   string `json:"interim,omitempty"`
	Err       string `json:"error,omitempty"`
	Notice    string `json:"notice,omitempty"`
}

type Options struct {
	TypedWindow  time.Duration
	VoiceWindow  time.Duration
	SavedDisplay time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	// Exit receives the page-exit write. Token mints the credential it
	// carries.
	Exit  beacon.Dispatcher
	Token func() (string, error)
}

// Autosave is the save state machine of one journal field:
//
//	Idle/Saved --edit--> PendingDebounce --timeout--> Saving --ok--> Saved --decay--> Idle
//	                                                  Saving --err--> Idle
//
// While dictation is active a timeout only leaves the edit pending.
type Autosave struct {
	saver  Saver
	opts   Options
	clock  clock.Clock
	logger *zap.Logger
	deb    *debounce.Debouncer

	mu        sync.Mutex
	target    Target
	state     State
	text      string
	lastSaved string
	storedSeq uint64
	dictating bool
	interim   string
	lastErr   error
	notice    string
	saving    chan struct{}
	closed    bool
	bg        sync.WaitGroup

	obsMu     sync.Mutex
	observers map[int]func(Status)
	nextObs   int
}

// NewAutosave starts Idle with text as the saved journal of target.
func NewAutosave(saver Saver, target Target, text string, opts Options) *Autosave {
	if opts.TypedWindow <= 0 {
		opts.TypedWindow = DefaultTypedWindow
	}
	if opts.VoiceWindow <= 0 {
		opts.VoiceWindow = DefaultVoiceWindow
	}
	if opts.SavedDisplay <= 0 {
		opts.SavedDisplay = DefaultSavedDisplay
	}
	a := &Autosave{
		saver:     saver,
		opts:      opts,
		clock:     clock.OrReal(opts.Clock),
		logger:    opts.Logger,
		target:    target,
		text:      text,
		lastSaved: text,
		observers: map[int]func(Status){},
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.deb = debounce.New(a.clock)
	return a
}

// Subscribe registers fn for status changes.
func (a *Autosave) Subscribe(fn func(Status)) (cancel func()) {
	a.obsMu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	a.obsMu.Unlock()
	return func() {
		a.obsMu.Lock()
		delete(a.observers, id)
		a.obsMu.Unlock()
	}
}

func (a *Autosave) statusLocked() Status {
	st := Status{
		State:     a.state,
		Date:      a.target.String(),
		Text:      a.text,
		Unsaved:   a.text != a.lastSaved,
		Dictating: a.dictating,
		Interim:   a.interim,
		Notice:    a.notice,
	}
	if a.lastErr != nil {
		st.Err = a.lastErr.Error()
	}
	return st
}

func (a *Autosave) publish(st Status) {
	a.obsMu.Lock()
	fns := make([]func(Status), 0, len(a.observers))
	for _, fn := range a.observers {
		fns = append(fns, fn)
	}
	a.obsMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Status returns the current status.
func (a *Autosave) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked()
}

// Text is the buffered text.
func (a *Autosave) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

// Target is the day being edited.
func (a *Autosave) Target() Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Retarget switches to another day once nothing is unsaved. It returns
// false while an edit for the current day is still pending.
func (a *Autosave) Retarget(t Target, savedText string) bool {
	a.mu.Lock()
	if a.target == t {
		a.mu.Unlock()
		return true
	}
	if a.text != a.lastSaved || a.state == Saving {
		a.mu.Unlock()
		return false
	}
	a.target = t
	a.text, a.lastSaved = savedText, savedText
	a.state = Idle
	a.lastErr = nil
	st := a.statusLocked()
	a.mu.Unlock()
	a.deb.Cancel(decayKey)
	a.publish(st)
	return true
}

// Stored records text as what the store holds for day t after the write
// numbered seq, whoever made it. Older notices are ignored. A clean buffer
// takes the new text. Unsaved edits stay and are saved over it.
func (a *Autosave) Stored(t Target, text string, seq uint64) {
	a.mu.Lock()
	if a.target != t || seq <= a.storedSeq {
		a.mu.Unlock()
		return
	}
	a.storedSeq = seq
	if a.lastSaved == text {
		a.mu.Unlock()
		return
	}
	clean := a.text == a.lastSaved && a.state != Saving && a.state != PendingDebounce
	a.lastSaved = text
	if clean {
		a.text = text
		a.state = Idle
	}
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)
}

// Edit buffers text and restarts the quiet-period timer for source.
func (a *Autosave) Edit(text string, source Source) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return apperr.Unauthenticated("journal.edit")
	}
	a.text = text
	a.notice = ""
	if text == a.lastSaved && a.state != Saving {
		// typed back to what is already saved
		a.state = Idle
		st := a.statusLocked()
		a.mu.Unlock()
		a.deb.Cancel(saveKey)
		a.publish(st)
		return nil
	}
	a.state = PendingDebounce
	st := a.statusLocked()
	a.mu.Unlock()

	window := a.opts.TypedWindow
	if source == SourceVoice {
		window = a.opts.VoiceWindow
	}
	a.deb.Cancel(decayKey)
	a.deb.Trigger(saveKey, window, a.timeout)
	a.publish(st)
	return nil
}

func (a *Autosave) timeout() {
	a.mu.Lock()
	if a.dictating {
		// mid-utterance; the stop flushes
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	_ = a.save(context.Background())
}

// Flush saves the buffered text now.
func (a *Autosave) Flush(ctx context.Context) error {
	a.deb.Cancel(saveKey)
	return a.save(ctx)
}

func (a *Autosave) save(ctx context.Context) error {
	a.mu.Lock()
	for a.saving != nil {
		wait := a.saving
		a.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
	}
	if a.text == a.lastSaved {
		if a.state == PendingDebounce {
			a.state = Idle
		}
		a.mu.Unlock()
		return nil
	}
	text, target, seq := a.text, a.target, a.storedSeq
	a.state = Saving
	a.lastErr = nil
	done := make(chan struct{})
	a.saving = done
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)

	err := a.saver.SaveJournal(ctx, target.Year, target.Month, target.Day, text)

	a.mu.Lock()
	a.saving = nil
	close(done)
	decay := false
	switch {
	case err != nil:
		// the text stays buffered, only the confirmation is lost
		a.lastErr = err
		if a.state == Saving {
			a.state = Idle
		}
	default:
		if a.storedSeq == seq {
			// no store notice arrived, the saver's word is all there is
			a.lastSaved = text
		}
		if a.state == Saving {
			switch {
			case a.text == text && a.lastSaved == text:
				a.state = Saved
				decay = true
			case a.text == text:
				// a later write to the day replaced ours
				a.text = a.lastSaved
				a.state = Idle
			default:
				a.state = PendingDebounce
			}
		}
	}
	st = a.statusLocked()
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("journal autosave failed", zap.String("date", target.String()), zap.Error(err))
	}
	if decay {
		a.deb.Trigger(decayKey, a.opts.SavedDisplay, a.decay)
	}
	a.publish(st)
	return err
}

func (a *Autosave) decay() {
	a.mu.Lock()
	if a.state != Saved {
		a.mu.Unlock()
		return
	}
	a.state = Idle
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)
}

// setDictating marks dictation on or off. Edits made while it is on stay
// pending until it is turned off.
func (a *Autosave) setDictating(on bool) {
	a.mu.Lock()
	a.dictating = on
	if !on {
		a.interim = ""
	}
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)
}

func (a *Autosave) setInterim(text string) {
	a.mu.Lock()
	a.interim = text
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)
}

func (a *Autosave) setNotice(msg string) {
	a.mu.Lock()
	a.notice = msg
	st := a.statusLocked()
	a.mu.Unlock()
	a.publish(st)
}

// ExitFlush hands unsaved text to the exit writer with a freshly minted
// credential and returns without waiting. The normal save runs alongside
// it, so the text stays unsaved until the store confirms it.
func (a *Autosave) ExitFlush() error {
	const op = "journal.exit_flush"
	a.mu.Lock()
	if a.text == a.lastSaved || a.closed {
		a.mu.Unlock()
		return nil
	}
	text, target := a.text, a.target
	a.mu.Unlock()

	// a cleared journal has no beacon form; the normal save removes it
	if text != "" {
		if a.opts.Exit == nil || a.opts.Token == nil {
			return apperr.New(apperr.KindRemoteWriteFailed, op, "no exit path configured")
		}
		token, err := a.opts.Token()
		if err != nil || token == "" {
			return apperr.Unauthenticated(op)
		}
		a.opts.Exit.Dispatch(beacon.NewPayload(token, target.Year, target.Month, target.Day, text))
	}
	a.deb.Cancel(saveKey)

	a.mu.Lock()
	if a.closed {
		// Close already saved the buffer
		a.mu.Unlock()
		return nil
	}
	a.bg.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.bg.Done()
		_ = a.save(context.Background())
	}()
	return nil
}

// Close stops the timers and saves anything still buffered.
func (a *Autosave) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.dictating = false
	a.mu.Unlock()
	a.deb.Cancel(saveKey)
	a.bg.Wait()
	err := a.save(ctx)
	a.deb.Stop()
	a.obsMu.Lock()
	a.observers = map[int]func(Status){}
	a.obsMu.Unlock()
	return err
}
