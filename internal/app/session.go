// Package app owns the top-level session: at most one active intake flow,
// and the hand-off of finished alerts to history, the event bus, and the
// responder lookup.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"github.com/google/uuid"

	"connectaid/internal/alert"
	"connectaid/internal/audio"
	"connectaid/internal/bus"
	"connectaid/internal/history"
	"connectaid/internal/intake"
	"connectaid/internal/ipc"
	"connectaid/internal/metrics"
	"connectaid/internal/notify"
	"connectaid/internal/responders"
)

// ResponderFinder is the "find nearby help" collaborator.
type ResponderFinder interface {
	FindNearby(ctx context.Context, cat alert.Category, details string, loc *alert.GeoPoint) ([]responders.Responder, error)
}

// Publisher pushes session events to attached UIs.
type Publisher interface {
	Publish(bus.Event)
}

type Deps struct {
	Speech  intake.SpeechChannel
	NLU     intake.NLU
	Locator intake.Locator
	Finder  ResponderFinder
	Store   history.Store  // optional
	Hub     Publisher      // optional
	Ducker  *audio.Ducker  // optional
	Earcon  *notify.Player // optional

	DefaultLang string
}

type Session struct {
	id   string
	deps Deps

	// mu guards the flow pointers; IPC serves each connection on its own
	// goroutine. The flows carry their own locks, so mu is never held
	// across a flow call.
	mu     sync.Mutex
	manual *intake.Manual
	voice  *intake.Voice
}

func NewSession(deps Deps) *Session {
	if deps.DefaultLang == "" {
		deps.DefaultLang = "en-US"
	}
	return &Session{id: uuid.NewString(), deps: deps}
}

func (s *Session) ID() string { return s.id }

// Welcome speaks the home greeting once the daemon is up.
func (s *Session) Welcome(ctx context.Context) {
	const msg = "If you are in an emergency, say 'help' or open the report form."
	s.publish(bus.Event{Kind: "status", Text: msg})
	if err := s.deps.Speech.Speak(ctx, msg, s.deps.DefaultLang); err != nil {
		log.Warn("welcome speech failed", "err", err)
	}
}

// Handle dispatches one control message from the IPC surface.
func (s *Session) Handle(msg ipc.ControlMessage) (string, error) {
	ctx := context.Background()

	switch msg.Cmd {
	case "voice-open":
		return s.openVoice(ctx)
	case "voice-turn":
		return s.voiceTurn(ctx)
	case "voice-close":
		return s.closeVoice()
	case "manual-open":
		return s.openManual(ctx)
	case "manual-category":
		return s.manualDo(func(m *intake.Manual) error {
			if len(msg.Args) != 1 {
				return fmt.Errorf("usage: manual-category <id>")
			}
			return m.SelectCategory(ctx, msg.Args[0])
		})
	case "manual-details":
		return s.manualDo(func(m *intake.Manual) error {
			return m.SetDetails(strings.Join(msg.Args, " "))
		})
	case "manual-simplify":
		return s.manualDo(func(m *intake.Manual) error { return m.Simplify(ctx) })
	case "manual-continue":
		return s.manualDo(func(m *intake.Manual) error { return m.ValidateAndContinue(ctx) })
	case "manual-proceed":
		return s.manualDo(func(m *intake.Manual) error { return m.ContinueWithoutLocation() })
	case "manual-submit":
		return s.manualDo(func(m *intake.Manual) error {
			_, err := m.Submit()
			return err
		})
	case "cancel":
		return s.cancel()
	case "status":
		return s.status(), nil
	case "history":
		return s.historySummary()
	default:
		return "", fmt.Errorf("unknown command %q", msg.Cmd)
	}
}

func (s *Session) openVoice(ctx context.Context) (string, error) {
	s.mu.Lock()
	if flow := s.activeFlowLocked(); flow != "" {
		s.mu.Unlock()
		return "", fmt.Errorf("a %s flow is already active", flow)
	}
	v := intake.NewVoice(s.deps.NLU, s.deps.Locator, s.deps.Speech, s.deps.DefaultLang, s.hooks("voice"))
	s.voice = v
	s.mu.Unlock()

	v.Open(ctx)
	return "voice session open", nil
}

func (s *Session) voiceTurn(ctx context.Context) (string, error) {
	s.mu.Lock()
	v := s.voice
	s.mu.Unlock()
	if v == nil {
		return "", fmt.Errorf("no voice session")
	}

	metrics.TurnsStarted.Inc()
	if s.deps.Earcon != nil {
		s.deps.Earcon.Play()
	}
	if s.deps.Ducker != nil {
		if err := s.deps.Ducker.Engage(ctx, 0.3, 200*time.Millisecond); err != nil {
			log.Debug("duck failed", "err", err)
		}
		defer func() {
			if err := s.deps.Ducker.Release(ctx, 200*time.Millisecond); err != nil {
				log.Debug("unduck failed", "err", err)
			}
		}()
	}

	if err := v.Turn(ctx); err != nil {
		return "", err
	}
	return "turn complete, step " + v.Step().String(), nil
}

func (s *Session) closeVoice() (string, error) {
	s.mu.Lock()
	v := s.voice
	s.voice = nil
	s.mu.Unlock()
	if v == nil {
		return "", fmt.Errorf("no voice session")
	}
	v.Close()
	return "voice session closed", nil
}

func (s *Session) openManual(ctx context.Context) (string, error) {
	s.mu.Lock()
	if flow := s.activeFlowLocked(); flow != "" {
		s.mu.Unlock()
		return "", fmt.Errorf("a %s flow is already active", flow)
	}
	m := intake.NewManual(s.deps.NLU, s.deps.Locator, s.deps.Speech, s.deps.DefaultLang, s.hooks("manual"))
	s.manual = m
	s.mu.Unlock()

	m.Open(ctx)
	return "manual flow open", nil
}

func (s *Session) manualDo(fn func(*intake.Manual) error) (string, error) {
	s.mu.Lock()
	m := s.manual
	s.mu.Unlock()
	if m == nil {
		return "", fmt.Errorf("no manual flow")
	}
	if err := fn(m); err != nil {
		return "", err
	}
	reply := "ok, step " + m.Step().String()
	if fb := m.DetailsError(); fb != "" {
		reply += ": " + fb
	}
	return reply, nil
}

func (s *Session) cancel() (string, error) {
	s.mu.Lock()
	m, v := s.manual, s.voice
	s.manual, s.voice = nil, nil
	s.mu.Unlock()

	switch {
	case m != nil:
		m.Cancel()
		return "manual flow cancelled", nil
	case v != nil:
		v.Close()
		return "voice session cancelled", nil
	default:
		return "nothing to cancel", nil
	}
}

func (s *Session) status() string {
	s.mu.Lock()
	m, v := s.manual, s.voice
	s.mu.Unlock()

	switch {
	case m != nil:
		return "manual flow at step " + m.Step().String()
	case v != nil:
		return "voice session at step " + v.Step().String() + ", language " + v.Language()
	default:
		return "idle"
	}
}

func (s *Session) historySummary() (string, error) {
	if s.deps.Store == nil {
		return "", fmt.Errorf("history disabled")
	}
	list, err := s.deps.Store.List()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d alerts", len(list))
	for i, a := range list {
		if i == 5 {
			b.WriteString("\n...")
			break
		}
		fmt.Fprintf(&b, "\n%s  %-13s %s", a.CreatedAt.Format(time.RFC3339), a.Category.Name, a.ID)
	}
	return b.String(), nil
}

func (s *Session) activeFlowLocked() string {
	switch {
	case s.manual != nil:
		return "manual"
	case s.voice != nil:
		return "voice"
	default:
		return ""
	}
}

func (s *Session) hooks(channel string) intake.Hooks {
	return intake.Hooks{
		AlertReady: func(a *alert.Alert) { s.handleAlert(channel, a) },
		Cancelled: func() {
			s.publish(bus.Event{Kind: "status", Channel: channel, Text: "cancelled"})
		},
		StepChanged: func(step string) {
			s.publish(bus.Event{Kind: "step", Channel: channel, Step: step})
		},
		Status: func(text string) {
			s.publish(bus.Event{Kind: "status", Channel: channel, Text: text})
		},
		Heard: func(text string) {
			s.publish(bus.Event{Kind: "heard", Channel: channel, Text: text})
		},
	}
}

// handleAlert receives ownership of a finished alert: persist it, announce
// it, then run the responder lookup. Nothing here may fail the session.
func (s *Session) handleAlert(channel string, a *alert.Alert) {
	ctx := context.Background()

	log.Info("alert ready", "id", a.ID, "category", a.Category.ID, "channel", channel, "located", a.Location != nil)
	metrics.AlertsSubmitted.WithLabelValues(channel, string(a.Category.ID)).Inc()

	if s.deps.Store != nil {
		if err := s.deps.Store.Save(a); err != nil {
			log.Warn("failed to persist alert", "id", a.ID, "err", err)
		}
	}
	s.publish(bus.Event{Kind: "alert", Channel: channel, Alert: a})

	s.mu.Lock()
	switch channel {
	case "manual":
		s.manual = nil
	case "voice":
		s.voice = nil
	}
	s.mu.Unlock()

	if s.deps.Finder == nil {
		return
	}
	found, err := s.deps.Finder.FindNearby(ctx, a.Category, a.Details, a.Location)
	if err != nil {
		metrics.ResponderLookups.WithLabelValues("error").Inc()
		log.Warn("responder lookup failed", "err", err)
		s.say(ctx, "Your alert has been sent, but I could not look up nearby responders right now.")
		return
	}

	metrics.ResponderLookups.WithLabelValues("ok").Inc()
	s.publish(bus.Event{Kind: "responders", Channel: channel, Responders: found})
	if len(found) == 0 {
		s.say(ctx, "Your alert has been sent. No nearby contacts were found, please stay where you are.")
		return
	}
	s.say(ctx, fmt.Sprintf("Your alert has been sent. I found %d nearby contacts for help.", len(found)))
}

func (s *Session) say(ctx context.Context, text string) {
	s.publish(bus.Event{Kind: "status", Text: text})
	if err := s.deps.Speech.Speak(ctx, text, s.deps.DefaultLang); err != nil {
		log.Warn("announcement failed", "err", err)
	}
}

func (s *Session) publish(ev bus.Event) {
	if s.deps.Hub == nil {
		return
	}
	ev.SessionID = s.id
	s.deps.Hub.Publish(ev)
}
