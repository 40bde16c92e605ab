// Package session keeps one working replica per signed-in user: the entry
// coordinator, today's journal autosave and the dictation feeding it.
// Sessions are created on first use and torn down on sign-out or after
// sitting idle.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/moody-app/moody/internal/modules/beacon"
	"github.com/moody-app/moody/internal/modules/entry"
	"github.com/moody-app/moody/internal/modules/journal"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/moody-app/moody/internal/pkg/mood"
	"go.uber.org/zap"
)

// TokenFunc mints a short-lived credential for uid.
type TokenFunc func(uid string) (string, error)

// Deps are shared by every session of a Registry.
type Deps struct {
	Docs     docstore.Store
	Moods    *mood.Taxonomy
	Location *time.Location
	Clock    clock.Clock
	Logger   *zap.Logger

	MoodDebounce  time.Duration
	TypedDebounce time.Duration
	VoiceDebounce time.Duration
	SavedDisplay  time.Duration
	DictationCap  time.Duration

	Exit  beacon.Dispatcher
	Token TokenFunc
}

// Event is one message on a session's event stream.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Session is the live state of one signed-in user.
type Session struct {
	ID     string
	uid    string
	clock  clock.Clock
	logger *zap.Logger

	entries *entry.Coordinator
	editor  *journal.Editor

	signedOut atomic.Bool
	lastSeen  atomic.Int64
	streams   atomic.Int32

	mu        sync.Mutex
	listeners map[int]chan Event
	nextID    int
	closed    bool
	unsub     []func()
}

// UserID implements entry.Identity. It is empty once the session is closed.
func (s *Session) UserID() string {
	if s.signedOut.Load() {
		return ""
	}
	return s.uid
}

func newSession(ctx context.Context, uid string, d Deps) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		uid:       uid,
		clock:     clock.OrReal(d.Clock),
		logger:    d.Logger.With(zap.String("uid", uid)),
		listeners: map[int]chan Event{},
	}
	s.touch()
	s.entries = entry.NewCoordinator(s, d.Docs, entry.Options{
		MoodDebounce: d.MoodDebounce,
		Location:     d.Location,
		Moods:        d.Moods,
		Clock:        d.Clock,
		Logger:       s.logger,
	})
	if err := s.entries.Load(ctx); err != nil {
		return nil, err
	}

	y, m, day := s.entries.Today()
	target := journal.Target{Year: y, Month: m, Day: day}
	auto := journal.NewAutosave(s.entries, target, s.entries.Snapshot().GetDay(y, m, day).Journal, journal.Options{
		TypedWindow:  d.TypedDebounce,
		VoiceWindow:  d.VoiceDebounce,
		SavedDisplay: d.SavedDisplay,
		Clock:        d.Clock,
		Logger:       s.logger,
		Exit:         d.Exit,
		Token: func() (string, error) {
			if d.Token == nil {
				return "", errors.New("no token minter")
			}
			if uid := s.UserID(); uid != "" {
				return d.Token(uid)
			}
			return "", errors.New("signed out")
		},
	})
	s.editor = &journal.Editor{
		Auto:  auto,
		Voice: journal.NewDictation(auto, d.Clock, d.DictationCap),
	}

	s.unsub = append(s.unsub,
		// any confirmed journal write, PUT /entries included, is the new
		// saved baseline of the editor
		s.entries.Subscribe(func(ev entry.Event) {
			if ev.Kind == entry.EventPersisted {
				auto.Stored(journal.Target{Year: ev.Year, Month: ev.Month, Day: ev.Day}, ev.Entry.Journal, ev.Seq)
			}
		}),
		s.entries.Subscribe(func(ev entry.Event) { s.broadcast(Event{Type: "entry", Data: ev}) }),
		auto.Subscribe(func(st journal.Status) { s.broadcast(Event{Type: "autosave", Data: st}) }),
	)
	return s, nil
}

func (s *Session) touch() { s.lastSeen.Store(s.clock.Now().UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Entries is the user's entry coordinator.
func (s *Session) Entries() *entry.Coordinator {
	s.touch()
	return s.entries
}

// Editor returns the journal editor pointed at today. After midnight the
// autosave moves to the new day once the old day's text is saved.
func (s *Session) Editor() *journal.Editor {
	s.touch()
	y, m, d := s.entries.Today()
	t := journal.Target{Year: y, Month: m, Day: d}
	if s.editor.Auto.Target() != t {
		saved := s.entries.Snapshot().GetDay(y, m, d).Journal
		if !s.editor.Auto.Retarget(t, saved) {
			s.logger.Debug("journal retarget deferred", zap.String("day", t.String()))
		}
	}
	return s.editor
}

// Subscribe opens an event stream. The channel is closed when the session
// ends or cancel is called.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.touch()
	ch := make(chan Event, 32)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	s.mu.Unlock()
	s.streams.Add(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.streams.Add(-1)
			s.touch()
			s.mu.Lock()
			if c, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

// broadcast drops the event for listeners that are not keeping up.
func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close flushes the journal and pending moods, then signs the session out.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.editor.Voice.Stop(ctx)
	errJournal := s.editor.Auto.Close(ctx)
	errEntries := s.entries.Close(ctx)
	s.signedOut.Store(true)
	for _, fn := range s.unsub {
		fn()
	}

	s.mu.Lock()
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
	s.mu.Unlock()
	return errors.Join(errJournal, errEntries)
}
