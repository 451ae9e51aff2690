package intake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"connectaid/internal/alert"
	"connectaid/internal/metrics"
	"connectaid/internal/nlu"
)

type ManualStep int

const (
	StepCategory ManualStep = iota
	StepDetails
	StepLocation
	StepReview
	StepSubmitted
	StepCancelled
)

func (s ManualStep) String() string {
	switch s {
	case StepCategory:
		return "category"
	case StepDetails:
		return "details"
	case StepLocation:
		return "location"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	case StepCancelled:
		return "cancelled"
	}
	return "unknown"
}

const locationFailedStatus = "Could not get location. Please proceed and contact responders with your location."

// Manual drives the typed intake: category, details, location, review,
// submit, strictly in order. All mutation goes through its methods; the
// busy flag makes the two details-step actions mutually exclusive.
type Manual struct {
	mu         sync.Mutex
	step       ManualStep
	category   alert.Category
	details    string
	detailsErr string
	location   *alert.GeoPoint
	locStatus  string
	busy       bool

	nlu     NLU
	locator Locator
	speech  SpeechChannel
	lang    string
	hooks   Hooks

	// confirmDelay is the pause between a successful location fix and the
	// auto-advance to review, so the user sees the confirmation.
	confirmDelay time.Duration
}

type ManualOption func(*Manual)

func WithConfirmDelay(d time.Duration) ManualOption {
	return func(m *Manual) { m.confirmDelay = d }
}

func NewManual(n NLU, l Locator, sp SpeechChannel, lang string, hooks Hooks, opts ...ManualOption) *Manual {
	if lang == "" {
		lang = "en-US"
	}
	m := &Manual{
		step:         StepCategory,
		nlu:          n,
		locator:      l,
		speech:       sp,
		lang:         lang,
		hooks:        hooks,
		confirmDelay: 1500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open announces the flow. Separate from construction so hooks are wired
// before the first narration.
func (m *Manual) Open(ctx context.Context) {
	m.hooks.stepChanged(StepCategory.String())
	m.narrate(ctx, "Please select the category of your emergency.")
}

func (m *Manual) SelectCategory(ctx context.Context, id string) error {
	cat, ok := alert.CategoryByID(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, id)
	}

	m.mu.Lock()
	if m.step != StepCategory {
		m.mu.Unlock()
		return fmt.Errorf("select category: %w", ErrBadStep)
	}
	m.category = cat
	m.step = StepDetails
	m.mu.Unlock()

	m.hooks.stepChanged(StepDetails.String())
	m.narrate(ctx, fmt.Sprintf("You have selected %s. Now, please describe your situation.", cat.Name))
	return nil
}

// SetDetails replaces the typed description. Valid only in the details step;
// editing is allowed while an async action is pending, matching a live
// text field.
func (m *Manual) SetDetails(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepDetails {
		return fmt.Errorf("set details: %w", ErrBadStep)
	}
	m.details = text
	return nil
}

// Simplify sends the current text to the collaborator and replaces the field
// with the rewrite. A no-op while another details action is pending.
func (m *Manual) Simplify(ctx context.Context) error {
	m.mu.Lock()
	if m.step != StepDetails {
		m.mu.Unlock()
		return fmt.Errorf("simplify: %w", ErrBadStep)
	}
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if strings.TrimSpace(m.details) == "" {
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	text := m.details
	m.mu.Unlock()
	defer m.clearBusy()

	m.narrate(ctx, "Simplifying your text for clarity.")
	simplified := m.nlu.Simplify(ctx, text)

	m.mu.Lock()
	if m.step == StepDetails {
		m.details = simplified
	}
	m.mu.Unlock()
	return nil
}

// ValidateAndContinue validates the description for the chosen category. On
// success it enters the location step and runs the one-shot position fetch;
// on failure the flow stays in details with the feedback surfaced and the
// typed text untouched. A no-op while another details action is pending.
func (m *Manual) ValidateAndContinue(ctx context.Context) error {
	m.mu.Lock()
	if m.step != StepDetails {
		m.mu.Unlock()
		return fmt.Errorf("validate: %w", ErrBadStep)
	}
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	m.detailsErr = ""
	details := m.details
	catName := m.category.Name
	m.mu.Unlock()

	v, err := m.nlu.ValidateDetails(ctx, details, catName)
	if err != nil {
		// Collaborator failure reads as a failed validation: stay put.
		log.Warn("validation call failed", "err", err)
		metrics.NLUFallbacks.Inc()
		v = nlu.Validation{Feedback: "Could not validate details. Please try again."}
	}

	if !v.IsValid {
		m.mu.Lock()
		if m.step == StepDetails {
			m.detailsErr = v.Feedback
		}
		m.mu.Unlock()
		m.clearBusy()
		m.hooks.status(v.Feedback)
		m.narrate(ctx, v.Feedback)
		return nil
	}

	m.mu.Lock()
	if m.step != StepDetails { // cancelled while validating
		m.mu.Unlock()
		m.clearBusy()
		return nil
	}
	m.step = StepLocation
	m.mu.Unlock()
	m.clearBusy()

	m.hooks.stepChanged(StepLocation.String())
	m.narrate(ctx, "Details confirmed. I am now fetching your current location to find the nearest help.")
	m.acquireLocation(ctx)
	return nil
}

// acquireLocation runs the single position fetch for the location step. On
// success the flow auto-advances to review after the confirmation pause; on
// failure it stays, and ContinueWithoutLocation is the way forward.
func (m *Manual) acquireLocation(ctx context.Context) {
	loc := m.locator.Acquire(ctx)

	m.mu.Lock()
	if m.step != StepLocation {
		m.mu.Unlock()
		return
	}
	if loc == nil {
		m.locStatus = locationFailedStatus
		m.mu.Unlock()
		m.hooks.status(locationFailedStatus)
		m.narrate(ctx, locationFailedStatus)
		return
	}
	m.location = loc
	m.locStatus = "Location acquired successfully."
	m.mu.Unlock()
	m.hooks.status("Location acquired successfully.")

	if m.confirmDelay > 0 {
		time.Sleep(m.confirmDelay)
	}

	m.mu.Lock()
	if m.step != StepLocation {
		m.mu.Unlock()
		return
	}
	m.step = StepReview
	m.mu.Unlock()

	m.hooks.stepChanged(StepReview.String())
	m.narrate(ctx, "Location acquired. Please review the details before sending the alert.")
}

// ContinueWithoutLocation advances to review when the position fetch failed.
// Missing location never blocks submission.
func (m *Manual) ContinueWithoutLocation() error {
	m.mu.Lock()
	if m.step != StepLocation {
		m.mu.Unlock()
		return fmt.Errorf("continue without location: %w", ErrBadStep)
	}
	m.step = StepReview
	m.mu.Unlock()
	m.hooks.stepChanged(StepReview.String())
	return nil
}

// Submit constructs the alert and terminates the flow. Valid only in review.
func (m *Manual) Submit() (*alert.Alert, error) {
	m.mu.Lock()
	if m.step != StepReview {
		m.mu.Unlock()
		return nil, fmt.Errorf("submit: %w", ErrBadStep)
	}
	a, err := alert.New(m.category, m.details, m.location)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.step = StepSubmitted
	m.mu.Unlock()

	m.hooks.stepChanged(StepSubmitted.String())
	m.hooks.alertReady(a)
	return a, nil
}

// Cancel discards the flow from any non-terminal step. Idempotent; calling
// it on a submitted or already-cancelled flow does nothing.
func (m *Manual) Cancel() {
	m.mu.Lock()
	if m.step == StepSubmitted || m.step == StepCancelled {
		m.mu.Unlock()
		return
	}
	m.step = StepCancelled
	m.mu.Unlock()

	m.hooks.stepChanged(StepCancelled.String())
	m.hooks.cancelled()
}

func (m *Manual) Step() ManualStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

func (m *Manual) Category() alert.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.category
}

func (m *Manual) Details() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details
}

func (m *Manual) DetailsError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailsErr
}

func (m *Manual) Location() *alert.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location
}

func (m *Manual) LocationStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locStatus
}

func (m *Manual) clearBusy() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Manual) narrate(ctx context.Context, text string) {
	if m.speech == nil {
		return
	}
	if err := m.speech.Speak(ctx, text, m.lang); err != nil {
		log.Warn("narration failed", "err", err)
	}
}
