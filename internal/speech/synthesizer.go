package speech

import (
	"context"
	"errors"
	"strings"

	log "log/slog"

	"connectaid/internal/tts"
)

// EspeakSynthesizer renders utterances through espeak-ng. Voice choice walks
// exact language tag, then language family, then the engine default; a missing
// voice alone never fails an utterance.
type EspeakSynthesizer struct{}

func (EspeakSynthesizer) Utter(ctx context.Context, text, lang string) error {
	for _, voice := range voiceCandidates(lang) {
		err := tts.Say(text, voice)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, tts.ErrInterrupted):
			return ErrAborted
		case errors.Is(err, tts.ErrNoVoice):
			continue
		default:
			return err
		}
	}

	log.Warn("no voice available, dropping utterance", "lang", lang)
	return nil
}

func (EspeakSynthesizer) Cancel() {
	tts.Stop()
}

func voiceCandidates(lang string) []string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return []string{""}
	}
	cands := []string{lang}
	if i := strings.IndexByte(lang, '-'); i > 0 {
		cands = append(cands, lang[:i])
	}
	return append(cands, "")
}
