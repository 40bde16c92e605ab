package journal

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/clock"
)

// MaxDictation caps one continuous listening session.
const MaxDictation = 5 * time.Minute

// CapNotice is published when a session hits MaxDictation.
const CapNotice = "Voice input stopped after 5 minutes"

var (
	questionOpeners = regexp.MustCompile(`(?i)^(why|how|what|when|where|who|which|is it|do you|does|did|can|could|would|should|are you|will|have you|has|was|were)`)
	terminalMark    = regexp.MustCompile(`[.!?]$`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// CleanTranscript tidies a final speech chunk: trimmed, first letter
// upper-cased, terminal punctuation added ("?" for question openers) and
// whitespace runs collapsed.
func CleanTranscript(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(cleaned)
	cleaned = string(unicode.ToUpper(r)) + cleaned[size:]
	if !terminalMark.MatchString(cleaned) {
		if questionOpeners.MatchString(cleaned) {
			cleaned += "?"
		} else {
			cleaned += "."
		}
	}
	return spaceRun.ReplaceAllString(cleaned, " ")
}

// AppendTranscript joins a cleaned chunk onto the text with one space,
// unless the text is empty or already ends in a space or newline.
func AppendTranscript(base, chunk string) string {
	if base == "" || strings.HasSuffix(base, " ") || strings.HasSuffix(base, "\n") {
		return base + chunk
	}
	return base + " " + chunk
}

// Chunk is one recognition result. Index grows over a session; a final
// chunk at an index already handled is ignored.
type Chunk struct {
	Index      int    `json:"index"`
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

var errorNotices = map[string]string{
	"audio-capture":       "Microphone not found or not working. Please check if your microphone is connected and working properly.",
	"not-allowed":         "Microphone access denied. Please allow microphone permissions in your browser settings and ensure your device settings allow microphone access.",
	"network":             "Network error during voice recognition. Please check your internet connection and try again.",
	"service-not-allowed": "Voice input is blocked by your browser or system settings. Please check your privacy settings.",
}

// quiet recognition errors end the session without a notice
var quietErrors = map[string]bool{
	"no-speech":              true,
	"aborted":                true,
	"bad-grammar":            true,
	"language-not-supported": true,
}

// ErrorNotice is the user-facing message for a recognition error code, or
// "" when the error should pass silently.
func ErrorNotice(code string) string {
	if quietErrors[code] {
		return ""
	}
	if msg, ok := errorNotices[code]; ok {
		return msg
	}
	if code == "" {
		code = "Unknown error"
	}
	return "Voice input error: " + code + ". Please try again."
}

// Dictation feeds speech chunks into an Autosave. While it runs, debounce
// timeouts do not save; stopping flushes at once.
type Dictation struct {
	auto  *Autosave
	clock clock.Clock
	limit time.Duration

	mu        sync.Mutex
	active    bool
	lastIndex int
	capTimer  clock.Timer
}

func NewDictation(auto *Autosave, c clock.Clock, limit time.Duration) *Dictation {
	if limit <= 0 {
		limit = MaxDictation
	}
	return &Dictation{auto: auto, clock: clock.OrReal(c), limit: limit, lastIndex: -1}
}

// Active reports whether a session is running.
func (d *Dictation) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Start opens a listening session with the hard cap armed.
func (d *Dictation) Start() error {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return apperr.Invalid("journal.dictation", "dictation already running")
	}
	d.active = true
	d.lastIndex = -1
	d.capTimer = d.clock.AfterFunc(d.limit, d.capReached)
	d.mu.Unlock()
	d.auto.setDictating(true)
	d.auto.setNotice("")
	return nil
}

// Push applies a recognition result and returns the text to display,
// including any interim transcript.
func (d *Dictation) Push(ch Chunk) (string, error) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return "", apperr.Invalid("journal.dictation", "dictation is not running")
	}
	if !ch.Final {
		d.mu.Unlock()
		d.auto.setInterim(ch.Transcript)
		return AppendTranscript(d.auto.Text(), ch.Transcript), nil
	}
	if ch.Index <= d.lastIndex {
		d.mu.Unlock()
		return d.auto.Text(), nil
	}
	d.lastIndex = ch.Index
	d.mu.Unlock()

	d.auto.setInterim("")
	if strings.TrimSpace(ch.Transcript) == "" {
		return d.auto.Text(), nil
	}
	text := AppendTranscript(d.auto.Text(), CleanTranscript(ch.Transcript))
	if err := d.auto.Edit(text, SourceVoice); err != nil {
		return "", err
	}
	return text, nil
}

// Stop ends the session and flushes the buffered text.
func (d *Dictation) Stop(ctx context.Context) error {
	d.end()
	return d.auto.Flush(ctx)
}

// Fail ends the session after a recognition error, publishing the notice
// for code, and flushes what was captured.
func (d *Dictation) Fail(ctx context.Context, code string) error {
	d.end()
	if msg := ErrorNotice(code); msg != "" {
		d.auto.setNotice(msg)
	}
	return d.auto.Flush(ctx)
}

func (d *Dictation) end() {
	d.mu.Lock()
	d.active = false
	if d.capTimer != nil {
		d.capTimer.Stop()
		d.capTimer = nil
	}
	d.mu.Unlock()
	d.auto.setDictating(false)
}

func (d *Dictation) capReached() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.end()
	d.auto.setNotice(CapNotice)
	_ = d.auto.Flush(context.Background())
}
