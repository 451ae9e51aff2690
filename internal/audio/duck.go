package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

// Ducker lowers every other playback stream while the assistant is speaking
// or listening, and restores them afterwards. Streams whose application.name
// matches selfNames are left alone.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	if minVolume < 0 {
		minVolume = 0
	}
	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
	}
}

// Engage fades foreign streams down to current*factor, floored at minVolume.
// Idempotent while active.
func (d *Ducker) Engage(ctx context.Context, factor float64, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := int(math.Round(float64(s.Volume) * factor))
		if to < d.minVolume {
			to = d.minVolume
		}
		d.originalVol[s.ID] = s.Volume
		if err := fadeStream(ctx, s.ID, s.Volume, to, fade); err != nil {
			return err
		}
	}

	d.active = true
	return nil
}

// Release restores the volumes recorded by Engage. Streams that appeared
// after the duck are left untouched.
func (d *Ducker) Release(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		if err := fadeStream(ctx, s.ID, s.Volume, orig, fade); err != nil {
			return err
		}
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func fadeStream(ctx context.Context, id, from, to int, duration time.Duration) error {
	const step = 10 * time.Millisecond

	steps := int(duration / step)
	if steps < 1 {
		steps = 1
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		v := from + (to-from)*i/steps
		if err := setStreamVolume(ctx, id, v); err != nil {
			return fmt.Errorf("set volume id=%d: %w", id, err)
		}
		if i < steps {
			time.Sleep(step)
		}
	}
	return nil
}

func listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}

	var res []streamInfo
	blocks := strings.Split(string(out), "Sink Input #")
	for _, block := range blocks[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		info := streamInfo{ID: id, Volume: 100}
		for _, line := range strings.Split(block[nl:], "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Volume:") {
				if m := percentRe.FindStringSubmatch(line); m != nil {
					if v, err := strconv.Atoi(m[1]); err == nil {
						info.Volume = v
					}
				}
			}
			if strings.HasPrefix(line, "application.name") {
				if q := strings.SplitN(line, "\"", 3); len(q) >= 2 {
					info.AppName = q[1]
				}
			}
		}
		res = append(res, info)
	}
	return res, nil
}

func setStreamVolume(ctx context.Context, id, percent int) error {
	arg := strconv.Itoa(percent) + "%"
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}
