package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ArchiveUtterance writes captured PCM to dir as a 16-bit mono WAV named by
// capture time, for later review of what the recognizer actually heard.
func ArchiveUtterance(dir string, pcm []float32) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("utt-%s.wav", time.Now().Format("20060102-150405.000")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)),
	}
	for i, v := range pcm {
		s := v
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
