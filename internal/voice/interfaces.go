package voice

import (
	"context"
	"time"
)

// Transcriber turns one captured utterance of 16-bit mono PCM into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// TTSBackend renders a payload audibly. Implementations dispatch on
// Payload.Kind.
type TTSBackend interface {
	Name() string
	Speak(ctx context.Context, p Payload) error
}

// CommandListener captures a single spoken command.
type CommandListener interface {
	Capture(ctx context.Context, timeout time.Duration) Utterance
}
