// Package tts is a thin binding over espeak-ng's synchronous playback mode.
// Higher-level serialization and voice fallback live in internal/speech.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int espeak_ready = 0;

static int
espeak_ensure(void)
{
	if (espeak_ready)
	{ return 0; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_ready = 1;
	return 0;
}

// Returns 0 on success, 1 when no voice matched lang, -1 on engine failure.
// An empty lang selects the engine default voice.
static int
espeak_say_voice(const char *text, const char *lang)
{
	if (!text)
	{ return -1; }

	if (espeak_ensure() != 0)
	{ return -1; }

	if (lang && strlen(lang) > 0)
	{
		espeak_VOICE specs;
		memset(&specs, 0, sizeof(specs));
		specs.languages = lang;
		if (espeak_SetVoiceByProperties(&specs) != EE_OK)
		{ return 1; }
	}
	else
	{
		if (espeak_SetVoiceByName("default") != EE_OK)
		{ return 1; }
	}

	if (espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0,
	                 espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -1; }

	espeak_Synchronize();
	return 0;
}

static void
espeak_stop(void)
{
	espeak_Cancel();
}
*/
import "C"

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

var (
	ErrNoVoice     = errors.New("tts: no matching voice")
	ErrInterrupted = errors.New("tts: utterance interrupted")
	ErrEngine      = errors.New("tts: engine failure")
)

var interrupted atomic.Bool

// Say renders text with the voice matching lang ("" = engine default) and
// blocks until playback finishes. Returns ErrInterrupted if Stop was called
// while rendering, ErrNoVoice if no voice matched lang.
func Say(text, lang string) error {
	if text == "" {
		return nil
	}

	interrupted.Store(false)

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	clang := C.CString(lang)
	defer C.free(unsafe.Pointer(clang))

	rc := C.espeak_say_voice(ctext, clang)
	if interrupted.Load() {
		return ErrInterrupted
	}
	switch rc {
	case 0:
		return nil
	case 1:
		return ErrNoVoice
	default:
		return ErrEngine
	}
}

// Stop cancels the utterance currently rendering, if any. Safe to call from
// another goroutine; the blocked Say returns ErrInterrupted.
func Stop() {
	interrupted.Store(true)
	C.espeak_stop()
}
