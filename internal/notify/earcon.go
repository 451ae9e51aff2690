package notify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// Player renders a short earcon so the user knows capture went live. The
// asset is decoded once; playback failure is logged, never fatal.
type Player struct {
	path string

	once   sync.Once
	buf    *beep.Buffer
	format beep.Format
}

func NewPlayer(path string) *Player {
	return &Player{path: path}
}

// Play renders the earcon and blocks until it finishes. A missing or broken
// asset turns Play into a no-op.
func (p *Player) Play() {
	p.once.Do(p.load)
	if p.buf == nil {
		return
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(p.buf.Streamer(0, p.buf.Len()), beep.Callback(func() {
		close(done)
	})))
	<-done
}

func (p *Player) load() {
	if p.path == "" {
		return
	}

	f, err := os.Open(p.path)
	if err != nil {
		log.Warn("earcon unavailable", "path", p.path, "err", err)
		return
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(p.path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		log.Warn("unsupported earcon format", "path", p.path)
		return
	}
	if err != nil {
		log.Warn("failed to decode earcon", "path", p.path, "err", err)
		return
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		log.Warn("failed to init speaker", "err", err)
		return
	}

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	p.buf = buf
	p.format = format
}
