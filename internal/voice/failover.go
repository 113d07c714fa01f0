package voice

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailoverTTS prefers primary and switches to fallback when primary fails.
// Once fallback succeeds it stays active until it fails; then primary is retried.
func NewFailoverTTS(primary, fallback TTSBackend) TTSBackend {
	if fallback == nil {
		return primary
	}
	if primary == nil {
		return fallback
	}
	return &failoverTTS{primary: primary, fallback: fallback}
}

// NewFailoverTranscriber applies the same sticky policy to transcription.
func NewFailoverTranscriber(primary, fallback Transcriber) Transcriber {
	if fallback == nil {
		return primary
	}
	if primary == nil {
		return fallback
	}
	return &failoverTranscriber{primary: primary, fallback: fallback}
}

type failoverState struct {
	fallbackActive atomic.Bool
}

func (s *failoverState) activateFallback() {
	s.fallbackActive.Store(true)
}

func (s *failoverState) deactivateFallback() {
	s.fallbackActive.Store(false)
}

func (s *failoverState) isFallbackActive() bool {
	return s.fallbackActive.Load()
}

type failoverTTS struct {
	state    failoverState
	primary  TTSBackend
	fallback TTSBackend
}

func (f *failoverTTS) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

func (f *failoverTTS) Speak(ctx context.Context, p Payload) error {
	if f.state.isFallbackActive() {
		fbErr := f.fallback.Speak(ctx, p)
		if fbErr == nil {
			return nil
		}
		// Fallback failed after being active; try primary again.
		prErr := f.primary.Speak(ctx, p)
		if prErr == nil {
			f.state.deactivateFallback()
			return nil
		}
		return fmt.Errorf("tts %s failed: %v; tts %s failed: %w", f.fallback.Name(), fbErr, f.primary.Name(), prErr)
	}

	prErr := f.primary.Speak(ctx, p)
	if prErr == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fbErr := f.fallback.Speak(ctx, p); fbErr != nil {
		return fmt.Errorf("tts %s failed: %v; tts %s failed: %w", f.primary.Name(), prErr, f.fallback.Name(), fbErr)
	}
	f.state.activateFallback()
	return nil
}

func (f *failoverTTS) FallbackActive() bool { return f.state.isFallbackActive() }

type failoverTranscriber struct {
	state    failoverState
	primary  Transcriber
	fallback Transcriber
}

func (f *failoverTranscriber) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

func (f *failoverTranscriber) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if f.state.isFallbackActive() {
		text, fbErr := f.fallback.Transcribe(ctx, pcm, sampleRate)
		if fbErr == nil {
			return text, nil
		}
		text, prErr := f.primary.Transcribe(ctx, pcm, sampleRate)
		if prErr == nil {
			f.state.deactivateFallback()
			return text, nil
		}
		return "", fmt.Errorf("stt %s failed: %v; stt %s failed: %w", f.fallback.Name(), fbErr, f.primary.Name(), prErr)
	}

	text, prErr := f.primary.Transcribe(ctx, pcm, sampleRate)
	if prErr == nil {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, fbErr := f.fallback.Transcribe(ctx, pcm, sampleRate)
	if fbErr != nil {
		return "", fmt.Errorf("stt %s failed: %v; stt %s failed: %w", f.primary.Name(), prErr, f.fallback.Name(), fbErr)
	}
	f.state.activateFallback()
	return text, nil
}
