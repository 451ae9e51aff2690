package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	log "log/slog"

	"connectaid/internal/audio"
	"connectaid/pkg/stt"
)

// MicPermissionEnv overrides the microphone permission state where the
// platform cannot report one ("granted" or "denied").
const MicPermissionEnv = "CONNECTAID_MIC"

// MicRecognizer captures one utterance from the default input device and
// transcribes it with whisper.
type MicRecognizer struct {
	rec        *audio.Recorder
	tr         *stt.Transcriber
	archiveDir string

	mu   sync.Mutex
	stop chan struct{}
}

func NewMicRecognizer(rec *audio.Recorder, tr *stt.Transcriber, archiveDir string) *MicRecognizer {
	return &MicRecognizer{rec: rec, tr: tr, archiveDir: archiveDir}
}

func (m *MicRecognizer) Permission(ctx context.Context) Permission {
	switch os.Getenv(MicPermissionEnv) {
	case "denied":
		return PermissionDenied
	case "granted":
		return PermissionGranted
	default:
		return PermissionUnknown
	}
}

func (m *MicRecognizer) Capture(ctx context.Context, lang string) (string, error) {
	m.mu.Lock()
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.stop == stop {
			m.stop = nil
		}
		m.mu.Unlock()
	}()

	pcm, err := m.rec.Record(stop)
	switch {
	case errors.Is(err, audio.ErrNoVoice):
		return "", ErrNoSpeech
	case errors.Is(err, audio.ErrStopped):
		return "", ErrAborted
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if m.archiveDir != "" {
		if path, err := audio.ArchiveUtterance(m.archiveDir, pcm); err != nil {
			log.Warn("failed to archive utterance", "err", err)
		} else {
			log.Debug("archived utterance", "path", path)
		}
	}

	res, err := m.tr.Transcribe(ctx, pcm, stt.Options{Language: lang})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if res.Text == "" {
		return "", ErrNoSpeech
	}
	return res.Text, nil
}

// Abort stops the in-flight capture, making it return ErrAborted. Safe when
// no capture is running.
func (m *MicRecognizer) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}
