package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "log/slog"
)

var (
	ErrUnavailable = errors.New("speech: no recognizer available")
	ErrDenied      = errors.New("speech: microphone access denied")
	ErrNoSpeech    = errors.New("speech: no speech detected")
	ErrAborted     = errors.New("speech: aborted")
)

type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

// Recognizer is one speech-to-text capture backend. Capture blocks until an
// utterance is recognized or fails; Abort makes an in-flight Capture return
// ErrAborted.
type Recognizer interface {
	Permission(ctx context.Context) Permission
	Capture(ctx context.Context, lang string) (string, error)
	Abort()
}

// Synthesizer renders one utterance audibly. Utter blocks until rendering
// finishes; Cancel makes an in-flight Utter return ErrAborted.
type Synthesizer interface {
	Utter(ctx context.Context, text, lang string) error
	Cancel()
}

// Channel is the sole owner of the process-wide recognizer and synthesizer.
// It serializes both: captures are never stacked and utterances are never
// queued or overlapped. All speech I/O must go through one Channel.
type Channel struct {
	rec Recognizer
	syn Synthesizer

	// settle is an optional pause after cancelling an utterance, before the
	// next one starts. It papers over driver races; the cancel-before-speak
	// rule is what actually guarantees ordering.
	settle time.Duration

	listenMu  sync.Mutex
	captureMu sync.Mutex
	capturing bool

	speakMu  sync.Mutex
	flightMu sync.Mutex
	uttering bool
	seq      uint64
}

func NewChannel(rec Recognizer, syn Synthesizer) *Channel {
	return &Channel{rec: rec, syn: syn, settle: 100 * time.Millisecond}
}

// SetSettleDelay overrides the post-cancel pause. Zero disables it.
func (c *Channel) SetSettleDelay(d time.Duration) { c.settle = d }

// ListenOnce captures a single utterance in the given language. If a capture
// is already outstanding it is stopped first; capture is not stackable. When
// microphone permission is known to be denied it fails fast with ErrDenied
// without touching the recognizer.
func (c *Channel) ListenOnce(ctx context.Context, lang string) (string, error) {
	if c.rec == nil {
		return "", ErrUnavailable
	}

	c.captureMu.Lock()
	if c.capturing {
		c.rec.Abort()
	}
	c.captureMu.Unlock()

	// Waits for the aborted capture, if any, to drain.
	c.listenMu.Lock()
	defer c.listenMu.Unlock()

	if c.rec.Permission(ctx) == PermissionDenied {
		return "", ErrDenied
	}

	c.captureMu.Lock()
	c.capturing = true
	c.captureMu.Unlock()
	defer func() {
		c.captureMu.Lock()
		c.capturing = false
		c.captureMu.Unlock()
	}()

	text, err := c.rec.Capture(ctx, lang)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Speak renders text in the given language. A previous utterance still
// rendering is forcibly cancelled first; a stale utterance finishing after a
// new state has begun would mislead the user. When several calls race, the
// newest wins and the rest return ErrAborted. Empty or whitespace-only text
// resolves immediately.
func (c *Channel) Speak(ctx context.Context, text, lang string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.syn == nil {
		// Degraded, not fatal: the session carries on silently.
		log.Warn("no synthesizer, dropping utterance", "lang", lang)
		return nil
	}

	c.flightMu.Lock()
	c.seq++
	my := c.seq
	interrupted := c.uttering
	if interrupted {
		c.syn.Cancel()
	}
	c.flightMu.Unlock()

	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	// A newer Speak may have arrived while we waited for the cancelled
	// utterance to drain; it owns the channel now.
	c.flightMu.Lock()
	stale := my != c.seq
	c.flightMu.Unlock()
	if stale {
		return ErrAborted
	}

	if interrupted && c.settle > 0 {
		time.Sleep(c.settle)
	}

	c.flightMu.Lock()
	c.uttering = true
	c.flightMu.Unlock()
	defer func() {
		c.flightMu.Lock()
		c.uttering = false
		c.flightMu.Unlock()
	}()

	return c.syn.Utter(ctx, text, lang)
}
