package speech

import (
	"context"
	"fmt"
	"sync"

	"connectaid/pkg/audioconv"
	"connectaid/pkg/stt"
)

// FileRecognizer feeds pre-recorded audio files to the transcriber instead of
// capturing from a microphone. For machines without capture hardware and for
// scripted walkthroughs: each Capture consumes the next queued file.
type FileRecognizer struct {
	tr *stt.Transcriber

	mu    sync.Mutex
	queue []string
}

func NewFileRecognizer(tr *stt.Transcriber, paths ...string) *FileRecognizer {
	return &FileRecognizer{tr: tr, queue: append([]string(nil), paths...)}
}

func (f *FileRecognizer) Permission(ctx context.Context) Permission {
	return PermissionGranted
}

func (f *FileRecognizer) Capture(ctx context.Context, lang string) (string, error) {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return "", ErrNoSpeech
	}
	path := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()

	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res, err := f.tr.Transcribe(ctx, pcm, stt.Options{Language: lang})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	if res.Text == "" {
		return "", ErrNoSpeech
	}
	return res.Text, nil
}

func (f *FileRecognizer) Abort() {}
