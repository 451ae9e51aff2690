package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Language      string // IETF tag ("en-US"), bare code ("en"), or "auto"
	TranslateToEn bool
	Threads       int // <=0 => NumCPU()
	InitialPrompt string
}

type Result struct {
	Text     string
	Language string // detected or forced
}

type Transcriber struct {
	model whisper.Model
}

func NewTranscriber(modelPath string) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe runs one decode over mono 16 kHz float32 PCM.
func (t *Transcriber) Transcribe(ctx context.Context, pcm16k []float32, opt Options) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(whisperLang(opt.Language)); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(opt.TranslateToEn)

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var text string
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		if text == "" {
			text = s.Text
		} else {
			text += " " + s.Text
		}
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{Text: strings.TrimSpace(text), Language: lang}, nil
}

// whisperLang maps an IETF tag to the bare code whisper expects.
func whisperLang(tag string) string {
	if tag == "" {
		return "auto"
	}
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
