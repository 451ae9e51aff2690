package intake

import (
	"context"
	"sync"

	"connectaid/internal/alert"
	"connectaid/internal/nlu"
)

type stubNLU struct {
	mu            sync.Mutex
	simplified    string
	validation    nlu.Validation
	validateErr   error
	validateCalls int
	turns         []nlu.TurnResult
	turnErr       error
	classified    []string
	classifySteps []nlu.Step

	// validateStarted/validateBlock make ValidateDetails controllable from
	// the test goroutine.
	validateStarted chan struct{}
	validateBlock   chan struct{}
}

func (s *stubNLU) Simplify(ctx context.Context, text string) string {
	if s.simplified != "" {
		return s.simplified
	}
	return text
}

func (s *stubNLU) ValidateDetails(ctx context.Context, details, categoryName string) (nlu.Validation, error) {
	s.mu.Lock()
	s.validateCalls++
	s.mu.Unlock()
	if s.validateStarted != nil {
		s.validateStarted <- struct{}{}
	}
	if s.validateBlock != nil {
		<-s.validateBlock
	}
	return s.validation, s.validateErr
}

func (s *stubNLU) ClassifyTurn(ctx context.Context, transcript string, step nlu.Step, pendingCategory string) (nlu.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classified = append(s.classified, transcript)
	s.classifySteps = append(s.classifySteps, step)
	if s.turnErr != nil {
		return nlu.TurnResult{}, s.turnErr
	}
	if len(s.turns) == 0 {
		return nlu.FallbackTurnResult(), nil
	}
	res := s.turns[0]
	s.turns = s.turns[1:]
	return res, nil
}

type stubLocator struct {
	mu    sync.Mutex
	pt    *alert.GeoPoint
	calls int
}

func (s *stubLocator) Acquire(ctx context.Context) *alert.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.pt
}

func (s *stubLocator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type listenReply struct {
	text string
	err  error
}

type stubSpeech struct {
	mu          sync.Mutex
	spoken      []string
	spokenLangs []string
	listens     []listenReply
	listenLangs []string

	listenStarted chan struct{}
	listenBlock   chan struct{}
	speakStarted  chan struct{}
	speakBlock    chan struct{}
}

func (s *stubSpeech) ListenOnce(ctx context.Context, lang string) (string, error) {
	s.mu.Lock()
	s.listenLangs = append(s.listenLangs, lang)
	var reply listenReply
	if len(s.listens) > 0 {
		reply = s.listens[0]
		s.listens = s.listens[1:]
	}
	s.mu.Unlock()

	if s.listenStarted != nil {
		s.listenStarted <- struct{}{}
	}
	if s.listenBlock != nil {
		<-s.listenBlock
	}
	return reply.text, reply.err
}

func (s *stubSpeech) Speak(ctx context.Context, text, lang string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.spokenLangs = append(s.spokenLangs, lang)
	started, block := s.speakStarted, s.speakBlock
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return nil
}

func (s *stubSpeech) lastSpoken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spoken) == 0 {
		return ""
	}
	return s.spoken[len(s.spoken)-1]
}

type hookLog struct {
	mu        sync.Mutex
	alerts    []*alert.Alert
	steps     []string
	statuses  []string
	heard     []string
	cancelled int
}

func (h *hookLog) hooks() Hooks {
	return Hooks{
		AlertReady: func(a *alert.Alert) {
			h.mu.Lock()
			h.alerts = append(h.alerts, a)
			h.mu.Unlock()
		},
		Cancelled: func() {
			h.mu.Lock()
			h.cancelled++
			h.mu.Unlock()
		},
		StepChanged: func(step string) {
			h.mu.Lock()
			h.steps = append(h.steps, step)
			h.mu.Unlock()
		},
		Status: func(text string) {
			h.mu.Lock()
			h.statuses = append(h.statuses, text)
			h.mu.Unlock()
		},
		Heard: func(text string) {
			h.mu.Lock()
			h.heard = append(h.heard, text)
			h.mu.Unlock()
		},
	}
}
