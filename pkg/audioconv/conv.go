// Package audioconv decodes wav/mp3/ogg audio files into the mono 16 kHz
// float32 PCM the transcriber consumes. Used for mic-less capture sources and
// for earcon assets.
package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const targetRate = 16000

// DecodeFile loads path and returns mono 16 kHz PCM. The format is chosen by
// extension; .ogg is tried as Vorbis first, then Opus.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga":
		pcm, verr := decodeOggVorbis(f)
		if verr == nil {
			return pcm, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, verr
		}
		pcm, oerr := decodeOggOpus(f)
		if oerr != nil {
			return nil, fmt.Errorf("ogg decode failed (vorbis: %v; opus: %v)", verr, oerr)
		}
		return pcm, nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", path)
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))
	x := make([]float32, len(pb.Data))
	for i, v := range pb.Data {
		x[i] = float32(clamp(float64(v) * scale))
	}

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return normalize(x, ch, sr), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// go-mp3 always emits interleaved stereo.
	return normalize(int16ToFloat32(ints), 2, sr), nil
}

func decodeOggVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return normalize(pcm, format.Channels, format.SampleRate), nil
}

func decodeOggOpus(rs io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var pcm48 []float32
	buf := make([]int16, 48000*ch/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	// Opus always decodes at 48 kHz.
	return normalize(pcm48, ch, 48000), nil
}

// normalize downmixes interleaved channels and resamples to the target rate.
func normalize(in []float32, channels, rate int) []float32 {
	if channels > 1 {
		frames := len(in) / channels
		mono := make([]float32, frames)
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += float64(in[i*channels+c])
			}
			mono[i] = float32(sum / float64(channels))
		}
		in = mono
	}
	if rate == targetRate || len(in) == 0 {
		return in
	}

	ratio := float64(targetRate) / float64(rate)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func clamp(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}
