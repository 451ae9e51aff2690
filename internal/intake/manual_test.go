package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectaid/internal/alert"
	"connectaid/internal/nlu"
)

func newManualUnderTest(t *testing.T, n *stubNLU, l *stubLocator) (*Manual, *stubSpeech, *hookLog) {
	t.Helper()
	sp := &stubSpeech{}
	h := &hookLog{}
	m := NewManual(n, l, sp, "en-US", h.hooks(), WithConfirmDelay(0))
	return m, sp, h
}

func TestManualHappyPath(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{validation: nlu.Validation{IsValid: true}}
	l := &stubLocator{pt: &alert.GeoPoint{Lat: 40.7128, Lng: -74.0060}}
	m, sp, h := newManualUnderTest(t, n, l)

	m.Open(ctx)
	assert.Equal(t, StepCategory, m.Step())
	assert.Equal(t, "Please select the category of your emergency.", sp.lastSpoken())

	require.NoError(t, m.SelectCategory(ctx, "medical"))
	assert.Equal(t, StepDetails, m.Step())

	require.NoError(t, m.SetDetails("Severe chest pain, struggling to breathe."))
	require.NoError(t, m.ValidateAndContinue(ctx))

	// With a zero confirm delay the successful fix auto-advances to review.
	assert.Equal(t, StepReview, m.Step())
	assert.Equal(t, 1, l.callCount())
	assert.Equal(t, "Location acquired successfully.", m.LocationStatus())

	a, err := m.Submit()
	require.NoError(t, err)
	assert.Equal(t, StepSubmitted, m.Step())
	assert.True(t, strings.HasPrefix(a.ID, "ALRT-"))
	assert.Equal(t, alert.Medical, a.Category.ID)
	assert.Equal(t, "Severe chest pain, struggling to breathe.", a.Details)
	require.NotNil(t, a.Location)
	assert.InDelta(t, 40.7128, a.Location.Lat, 1e-9)
	assert.False(t, a.CreatedAt.IsZero())

	require.Len(t, h.alerts, 1)
	assert.Same(t, a, h.alerts[0])
	assert.Equal(t, []string{"category", "details", "location", "review", "submitted"}, h.steps)
}

func TestManualUnknownCategory(t *testing.T) {
	m, _, _ := newManualUnderTest(t, &stubNLU{}, &stubLocator{})
	err := m.SelectCategory(context.Background(), "zombie_outbreak")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Equal(t, StepCategory, m.Step())
}

func TestManualInvalidDetailsKeepTextAndStep(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{validation: nlu.Validation{IsValid: false, Feedback: "Please describe the medical situation in more detail."}}
	l := &stubLocator{pt: &alert.GeoPoint{Lat: 1, Lng: 2}}
	m, _, h := newManualUnderTest(t, n, l)

	require.NoError(t, m.SelectCategory(ctx, "medical"))
	require.NoError(t, m.SetDetails("help"))
	require.NoError(t, m.ValidateAndContinue(ctx))

	assert.Equal(t, StepDetails, m.Step())
	assert.Equal(t, "help", m.Details(), "typed text must survive a failed validation")
	assert.Equal(t, n.validation.Feedback, m.DetailsError())
	assert.Zero(t, l.callCount())
	assert.Contains(t, h.statuses, n.validation.Feedback)

	// A later attempt clears the stale feedback before re-validating.
	n.validation = nlu.Validation{IsValid: true}
	require.NoError(t, m.ValidateAndContinue(ctx))
	assert.Empty(t, m.DetailsError())
	assert.Equal(t, StepReview, m.Step())
}

func TestManualValidationCallFailure(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{validateErr: assert.AnError}
	m, _, _ := newManualUnderTest(t, n, &stubLocator{})

	require.NoError(t, m.SelectCategory(ctx, "legal"))
	require.NoError(t, m.SetDetails("I am being evicted tomorrow without notice."))
	require.NoError(t, m.ValidateAndContinue(ctx))

	assert.Equal(t, StepDetails, m.Step())
	assert.Equal(t, "Could not validate details. Please try again.", m.DetailsError())
}

func TestManualLocationFailureNeverBlocksSubmission(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{validation: nlu.Validation{IsValid: true}}
	l := &stubLocator{pt: nil}
	m, _, h := newManualUnderTest(t, n, l)

	require.NoError(t, m.SelectCategory(ctx, "disaster"))
	require.NoError(t, m.SetDetails("Flood water is entering the house."))
	require.NoError(t, m.ValidateAndContinue(ctx))

	// Failed fix: the flow waits in the location step for an explicit choice.
	assert.Equal(t, StepLocation, m.Step())
	assert.Equal(t, locationFailedStatus, m.LocationStatus())
	assert.Equal(t, 1, l.callCount())

	_, err := m.Submit()
	assert.ErrorIs(t, err, ErrBadStep)

	require.NoError(t, m.ContinueWithoutLocation())
	assert.Equal(t, StepReview, m.Step())

	a, err := m.Submit()
	require.NoError(t, err)
	assert.Nil(t, a.Location)
	require.Len(t, h.alerts, 1)
}

func TestManualSimplifyReplacesDetails(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{simplified: "Chest pain. Need ambulance."}
	m, _, _ := newManualUnderTest(t, n, &stubLocator{})

	require.NoError(t, m.SelectCategory(ctx, "medical"))
	require.NoError(t, m.SetDetails("I am experiencing an incredibly sharp pain in my thoracic region"))
	require.NoError(t, m.Simplify(ctx))
	assert.Equal(t, "Chest pain. Need ambulance.", m.Details())
}

func TestManualSimplifyEmptyDetailsIsNoop(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManualUnderTest(t, &stubNLU{simplified: "should not appear"}, &stubLocator{})
	require.NoError(t, m.SelectCategory(ctx, "medical"))
	require.NoError(t, m.SetDetails("   "))
	require.NoError(t, m.Simplify(ctx))
	assert.Equal(t, "   ", m.Details())
}

func TestManualDetailsActionsAreMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{
		validation:      nlu.Validation{IsValid: true},
		validateStarted: make(chan struct{}, 1),
		validateBlock:   make(chan struct{}),
	}
	m, _, _ := newManualUnderTest(t, n, &stubLocator{pt: &alert.GeoPoint{}})

	require.NoError(t, m.SelectCategory(ctx, "financial"))
	require.NoError(t, m.SetDetails("Rent due, no funds left."))

	done := make(chan error, 1)
	go func() { done <- m.ValidateAndContinue(ctx) }()
	<-n.validateStarted // validation is in flight

	assert.ErrorIs(t, m.Simplify(ctx), ErrBusy)
	assert.ErrorIs(t, m.ValidateAndContinue(ctx), ErrBusy)
	// Editing the text field stays allowed while the call is pending.
	assert.NoError(t, m.SetDetails("Rent due tomorrow, no funds left."))

	close(n.validateBlock)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("validation never finished")
	}
	assert.Equal(t, 1, n.validateCalls)
}

func TestManualStepOrderEnforced(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManualUnderTest(t, &stubNLU{}, &stubLocator{})

	assert.ErrorIs(t, m.SetDetails("too early"), ErrBadStep)
	assert.ErrorIs(t, m.Simplify(ctx), ErrBadStep)
	assert.ErrorIs(t, m.ValidateAndContinue(ctx), ErrBadStep)
	assert.ErrorIs(t, m.ContinueWithoutLocation(), ErrBadStep)
	_, err := m.Submit()
	assert.ErrorIs(t, err, ErrBadStep)

	require.NoError(t, m.SelectCategory(ctx, "medical"))
	assert.ErrorIs(t, m.SelectCategory(ctx, "legal"), ErrBadStep)
}

func TestManualCancel(t *testing.T) {
	ctx := context.Background()
	m, _, h := newManualUnderTest(t, &stubNLU{}, &stubLocator{})

	require.NoError(t, m.SelectCategory(ctx, "mental_health"))
	m.Cancel()
	assert.Equal(t, StepCancelled, m.Step())
	assert.Equal(t, 1, h.cancelled)

	m.Cancel() // idempotent
	assert.Equal(t, 1, h.cancelled)
}

func TestManualCancelAfterSubmitIsNoop(t *testing.T) {
	ctx := context.Background()
	n := &stubNLU{validation: nlu.Validation{IsValid: true}}
	m, _, h := newManualUnderTest(t, n, &stubLocator{pt: &alert.GeoPoint{Lat: 3, Lng: 4}})

	require.NoError(t, m.SelectCategory(ctx, "medical"))
	require.NoError(t, m.SetDetails("Broken arm after a fall."))
	require.NoError(t, m.ValidateAndContinue(ctx))
	_, err := m.Submit()
	require.NoError(t, err)

	m.Cancel()
	assert.Equal(t, StepSubmitted, m.Step())
	assert.Zero(t, h.cancelled)
	require.Len(t, h.alerts, 1)
}
