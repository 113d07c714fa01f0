package voice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks a backend call that ran past its own deadline.
var ErrTimeout = errors.New("voice backend timed out")

// NewTimeoutTTS bounds every Speak call of b by d. A non-positive d or a nil
// backend is returned unchanged.
func NewTimeoutTTS(b TTSBackend, d time.Duration) TTSBackend {
	if b == nil || d <= 0 {
		return b
	}
	return &timeoutTTS{inner: b, timeout: d}
}

// NewTimeoutTranscriber bounds every Transcribe call of t by d.
func NewTimeoutTranscriber(t Transcriber, d time.Duration) Transcriber {
	if t == nil || d <= 0 {
		return t
	}
	return &timeoutTranscriber{inner: t, timeout: d}
}

type timeoutTTS struct {
	inner   TTSBackend
	timeout time.Duration
}

func (t *timeoutTTS) Name() string { return t.inner.Name() }

func (t *timeoutTTS) Speak(ctx context.Context, p Payload) error {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return timeoutError(ctx, callCtx, "tts "+t.inner.Name(), t.timeout, t.inner.Speak(callCtx, p))
}

type timeoutTranscriber struct {
	inner   Transcriber
	timeout time.Duration
}

func (t *timeoutTranscriber) Name() string { return t.inner.Name() }

func (t *timeoutTranscriber) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	text, err := t.inner.Transcribe(callCtx, pcm, sampleRate)
	if err != nil {
		return "", timeoutError(ctx, callCtx, "stt "+t.inner.Name(), t.timeout, err)
	}
	return text, nil
}

// timeoutError reports an expired call deadline as a plain failure so the
// caller's own context stays authoritative for cancellation.
func timeoutError(parent, call context.Context, what string, d time.Duration, err error) error {
	if err == nil || parent.Err() != nil {
		return err
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", what, d, ErrTimeout)
	}
	return err
}
