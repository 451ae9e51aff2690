package intake

import (
	"context"
	"errors"
	"sync"

	log "log/slog"

	"connectaid/internal/alert"
	"connectaid/internal/metrics"
	"connectaid/internal/nlu"
	"connectaid/internal/speech"
)

type DialogueStep int

const (
	DialogueInitial DialogueStep = iota
	DialogueReview
	DialogueSubmitted
	DialogueClosed
)

func (s DialogueStep) String() string {
	switch s {
	case DialogueInitial:
		return "initial"
	case DialogueReview:
		return "review"
	case DialogueSubmitted:
		return "submitted"
	case DialogueClosed:
		return "closed"
	}
	return "unknown"
}

const welcomePrompt = "Press the microphone button and tell me what's wrong."

// Voice drives the spoken intake. One externally-triggered Turn runs a whole
// listen-classify-speak-transition cycle; turns never overlap.
type Voice struct {
	mu             sync.Mutex
	step           DialogueStep
	pendingCat     alert.Category
	pendingDetails string
	lang           string
	inTurn         bool

	speech  SpeechChannel
	nlu     NLU
	locator Locator
	hooks   Hooks
}

func NewVoice(n NLU, l Locator, sp SpeechChannel, lang string, hooks Hooks) *Voice {
	if lang == "" {
		lang = "en-US"
	}
	return &Voice{
		step:    DialogueInitial,
		lang:    lang,
		speech:  sp,
		nlu:     n,
		locator: l,
		hooks:   hooks,
	}
}

// Open speaks the welcome prompt and puts the dialogue at its start.
func (v *Voice) Open(ctx context.Context) {
	v.mu.Lock()
	v.step = DialogueInitial
	v.pendingCat = alert.Category{}
	v.pendingDetails = ""
	lang := v.lang
	v.mu.Unlock()

	v.hooks.stepChanged(DialogueInitial.String())
	v.hooks.status(welcomePrompt)
	if err := v.speech.Speak(ctx, welcomePrompt, lang); err != nil {
		log.Warn("welcome speech failed", "err", err)
	}
}

// Turn runs one full dialogue cycle. While a turn is in flight further calls
// return ErrTurnInFlight; capture failures are spoken and leave the dialogue
// where it was.
func (v *Voice) Turn(ctx context.Context) error {
	v.mu.Lock()
	if v.step == DialogueSubmitted || v.step == DialogueClosed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.inTurn {
		v.mu.Unlock()
		return ErrTurnInFlight
	}
	v.inTurn = true
	lang := v.lang
	step := v.step
	pendingName := v.pendingCat.Name
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.inTurn = false
		v.mu.Unlock()
	}()

	transcript, err := v.speech.ListenOnce(ctx, lang)
	if err != nil {
		metrics.CaptureFailures.WithLabelValues(captureKind(err)).Inc()
		msg := captureMessage(err)
		v.hooks.status(msg)
		if serr := v.speech.Speak(ctx, msg, lang); serr != nil {
			log.Warn("capture-error speech failed", "err", serr)
		}
		return nil // recoverable; step preserved for retry
	}
	if transcript == "" {
		return nil
	}
	v.hooks.heard(transcript)

	res, err := v.nlu.ClassifyTurn(ctx, transcript, toNLUStep(step), pendingName)
	if err != nil {
		log.Warn("turn classification failed", "err", err)
		metrics.NLUFallbacks.Inc()
		res = nlu.FallbackTurnResult()
	}

	// Language is adopted only now, after processing: this turn captured
	// with the language established by the previous turn, and everything
	// from here speaks the newly detected one.
	v.mu.Lock()
	v.lang = res.DetectedLang
	lang = v.lang
	v.mu.Unlock()

	v.hooks.status(res.ResponseText)
	if serr := v.speech.Speak(ctx, res.ResponseText, lang); serr != nil {
		log.Warn("response speech failed", "err", serr)
	}

	if step == DialogueReview {
		return v.finishReview(ctx, res)
	}
	v.applyInitial(res)
	return nil
}

func (v *Voice) applyInitial(res nlu.TurnResult) {
	if res.IsValid && res.Category != "" {
		if cat, ok := alert.CategoryByName(res.Category); ok {
			v.mu.Lock()
			if v.step != DialogueInitial {
				v.mu.Unlock()
				return
			}
			v.pendingCat = cat
			v.pendingDetails = res.EnglishDetails
			v.step = DialogueReview
			v.mu.Unlock()
			v.hooks.stepChanged(DialogueReview.String())
			return
		}
	}

	// Not actionable: drop whatever was pending and stay at the start.
	v.mu.Lock()
	v.pendingCat = alert.Category{}
	v.pendingDetails = ""
	v.mu.Unlock()
}

func (v *Voice) finishReview(ctx context.Context, res nlu.TurnResult) error {
	v.mu.Lock()
	if v.step != DialogueReview { // closed while speaking the response
		v.mu.Unlock()
		return nil
	}
	cat := v.pendingCat
	details := v.pendingDetails
	confirmed := res.IsFinalConfirmation && cat.ID != ""

	if !confirmed {
		// Deliberate reset, not an error: an ambiguous or negative reply
		// discards the pending report rather than re-asking about it.
		v.pendingCat = alert.Category{}
		v.pendingDetails = ""
		v.step = DialogueInitial
		v.mu.Unlock()
		v.hooks.stepChanged(DialogueInitial.String())
		return nil
	}
	v.mu.Unlock()

	// Best-effort position; nil never blocks submission.
	loc := v.locator.Acquire(ctx)

	a, err := alert.NewVoice(cat, details, loc)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.step != DialogueReview { // closed while fetching location
		v.mu.Unlock()
		return nil
	}
	v.step = DialogueSubmitted
	v.mu.Unlock()

	v.hooks.stepChanged(DialogueSubmitted.String())
	v.hooks.alertReady(a)
	return nil
}

// Close discards dialogue state unconditionally. No alert is produced; the
// cancel hook fires unless the flow already submitted.
func (v *Voice) Close() {
	v.mu.Lock()
	if v.step == DialogueSubmitted || v.step == DialogueClosed {
		v.mu.Unlock()
		return
	}
	v.step = DialogueClosed
	v.pendingCat = alert.Category{}
	v.pendingDetails = ""
	v.mu.Unlock()

	v.hooks.stepChanged(DialogueClosed.String())
	v.hooks.cancelled()
}

func (v *Voice) Step() DialogueStep {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.step
}

func (v *Voice) Language() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lang
}

// Pending reports the dialogue's working memory between turns.
func (v *Voice) Pending() (alert.Category, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pendingCat, v.pendingDetails
}

func toNLUStep(s DialogueStep) nlu.Step {
	if s == DialogueReview {
		return nlu.StepReview
	}
	return nlu.StepInitial
}

func captureKind(err error) string {
	switch {
	case errors.Is(err, speech.ErrDenied):
		return "denied"
	case errors.Is(err, speech.ErrNoSpeech):
		return "no_speech"
	case errors.Is(err, speech.ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func captureMessage(err error) string {
	switch {
	case errors.Is(err, speech.ErrDenied):
		return "Microphone access was denied. Please allow microphone access in your settings to use the voice assistant."
	case errors.Is(err, speech.ErrNoSpeech):
		return "I didn't hear anything. Please press the microphone button and try speaking again."
	case errors.Is(err, speech.ErrUnavailable):
		return "Speech recognition is not available on this device."
	default:
		return "Sorry, an unexpected error occurred. Please try again."
	}
}
