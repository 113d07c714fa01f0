package voice

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
)

// Synthesizer speaks payloads and never fails: when every backend fails the
// display text is printed instead.
type Synthesizer struct {
	backend TTSBackend
	out     io.Writer
	name    string
}

// NewSynthesizer builds a synthesizer over primary with an optional simpler
// secondary. Either may be nil.
func NewSynthesizer(primary, secondary TTSBackend, out io.Writer, assistantName string) *Synthesizer {
	if out == nil {
		out = io.Discard
	}
	name := strings.TrimSpace(assistantName)
	if name == "" {
		name = "TARS"
	}
	return &Synthesizer{
		backend: NewFailoverTTS(primary, secondary),
		out:     out,
		name:    name,
	}
}

func (s *Synthesizer) Speak(ctx context.Context, p Payload) {
	if p.IsZero() {
		return
	}
	if s.backend != nil {
		err := s.backend.Speak(ctx, p)
		if err == nil {
			return
		}
		log.Printf("tts %s failed: %v", s.backend.Name(), err)
	}
	fmt.Fprintf(s.out, "%s: %s\n", s.name, p.Text())
}

// Backend returns the composed backend, or nil when only printing is available.
func (s *Synthesizer) Backend() TTSBackend { return s.backend }
