// Package intake holds the two intake state machines: the typed multi-step
// flow and the voice dialogue. Both converge on the same terminal contract,
// one alert.Alert handed to the hooks.
package intake

import (
	"context"
	"errors"

	"connectaid/internal/alert"
	"connectaid/internal/nlu"
)

var (
	ErrBusy            = errors.New("intake: another action is in flight")
	ErrTurnInFlight    = errors.New("intake: a turn is already in flight")
	ErrBadStep         = errors.New("intake: action not valid in current step")
	ErrClosed          = errors.New("intake: flow is closed")
	ErrUnknownCategory = errors.New("intake: unknown category")
)

// NLU is the language-understanding collaborator both flows depend on.
type NLU interface {
	Simplify(ctx context.Context, text string) string
	ValidateDetails(ctx context.Context, details, categoryName string) (nlu.Validation, error)
	ClassifyTurn(ctx context.Context, transcript string, step nlu.Step, pendingCategory string) (nlu.TurnResult, error)
}

// Locator is the best-effort position collaborator; nil means no location.
type Locator interface {
	Acquire(ctx context.Context) *alert.GeoPoint
}

// SpeechChannel is the serialized speech I/O surface; the voice flow drives
// both directions, the manual flow uses Speak for narration only.
type SpeechChannel interface {
	ListenOnce(ctx context.Context, lang string) (string, error)
	Speak(ctx context.Context, text, lang string) error
}

// Hooks receive flow output. AlertReady fires exactly once per successful
// flow, Cancelled at most once on explicit abort. All fields are optional.
type Hooks struct {
	AlertReady  func(*alert.Alert)
	Cancelled   func()
	StepChanged func(step string)
	Status      func(text string)
	Heard       func(transcript string)
}

func (h Hooks) alertReady(a *alert.Alert) {
	if h.AlertReady != nil {
		h.AlertReady(a)
	}
}

func (h Hooks) cancelled() {
	if h.Cancelled != nil {
		h.Cancelled()
	}
}

func (h Hooks) stepChanged(step string) {
	if h.StepChanged != nil {
		h.StepChanged(step)
	}
}

func (h Hooks) status(text string) {
	if h.Status != nil {
		h.Status(text)
	}
}

func (h Hooks) heard(text string) {
	if h.Heard != nil {
		h.Heard(text)
	}
}
