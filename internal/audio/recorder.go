package audio

import (
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	ErrNoVoice = errors.New("audio: no voiced frames captured")
	ErrStopped = errors.New("audio: capture stopped")
)

const (
	SampleRate = 16000

	frameSize        = 320 // 20ms
	silenceThreshRMS = 0.015
	silenceAfter     = 600 * time.Millisecond
	maxUtterance     = 15 * time.Second
)

type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures one utterance from the default input device: it waits for
// voice activity, then stops after trailing silence, the stop signal, or the
// utterance cap. Returns ErrNoVoice if nothing above the silence threshold was
// heard, ErrStopped if the stop channel fired first.
func (r *Recorder) Record(stop <-chan struct{}) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)

	maxFrames := int(maxUtterance/time.Second) * SampleRate / frameSize
	silenceLimit := int(silenceAfter / (20 * time.Millisecond))

	for i := 0; i < maxFrames; i++ {
		select {
		case <-stop:
			return nil, ErrStopped
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silenceFrames++
			if silenceFrames >= silenceLimit {
				break
			}
			out = append(out, buf...)
		}
	}

	if !speaking {
		return nil, ErrNoVoice
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
