package wakeword

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/voice"
)

const (
	DefaultKeyword      = "jarvis"
	defaultMinUtterance = 300 * time.Millisecond
	defaultMaxUtterance = 2 * time.Second
	defaultRefractory   = 1500 * time.Millisecond
)

// Detector consumes capture frames and reports wake word detections.
type Detector interface {
	Feed(ctx context.Context, frame []int16) bool
	FrameSize() int
	SampleRate() int
	Close() error
}

type Config struct {
	Keywords     []string
	SampleRate   int
	FrameSize    int
	MinUtterance time.Duration
	MaxUtterance time.Duration
	Refractory   time.Duration
}

// PhraseDetector spots keywords by transcribing short VAD-delimited
// utterances. Utterances whose voiced part is outside [MinUtterance,
// MaxUtterance] are dropped without a transcription call.
type PhraseDetector struct {
	transcriber voice.Transcriber
	keywords    []string
	sampleRate  int
	frameSize   int
	minVoiced   int
	maxVoiced   int
	refractory  time.Duration
	now         func() time.Time

	mu          sync.Mutex
	vad         *audio.RMSVAD
	buf         []int16
	voiced      int
	overflow    bool
	lastTrigger time.Time
	closed      bool
}

func NewPhraseDetector(transcriber voice.Transcriber, cfg Config) *PhraseDetector {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.DefaultFrameSize
	}
	if cfg.MinUtterance <= 0 {
		cfg.MinUtterance = defaultMinUtterance
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = defaultMaxUtterance
	}
	if cfg.Refractory <= 0 {
		cfg.Refractory = defaultRefractory
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if n := normalize(k); n != "" {
			keywords = append(keywords, n)
		}
	}
	if len(keywords) == 0 {
		keywords = []string{DefaultKeyword}
	}
	return &PhraseDetector{
		transcriber: transcriber,
		keywords:    keywords,
		sampleRate:  cfg.SampleRate,
		frameSize:   cfg.FrameSize,
		minVoiced:   audio.DurationSamples(cfg.SampleRate, cfg.MinUtterance.Milliseconds()),
		maxVoiced:   audio.DurationSamples(cfg.SampleRate, cfg.MaxUtterance.Milliseconds()),
		refractory:  cfg.Refractory,
		now:         time.Now,
		vad:         audio.NewRMSVAD(),
	}
}

func (d *PhraseDetector) FrameSize() int  { return d.frameSize }
func (d *PhraseDetector) SampleRate() int { return d.sampleRate }

func (d *PhraseDetector) Keywords() []string {
	return append([]string(nil), d.keywords...)
}

// Feed processes one frame. It returns true exactly once per detected phrase.
func (d *PhraseDetector) Feed(ctx context.Context, frame []int16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(frame) == 0 {
		return false
	}

	speaking := d.vad.IsSpeech(frame)
	if speaking {
		if d.overflow {
			return false
		}
		d.buf = append(d.buf, frame...)
		if audio.RMS(frame) >= d.vad.SilenceThreshold {
			d.voiced += len(frame)
		}
		if d.voiced > d.maxVoiced {
			d.overflow = true
			d.buf = nil
		}
		return false
	}

	if len(d.buf) == 0 && !d.overflow {
		return false
	}
	pcm, voiced, overflow := d.buf, d.voiced, d.overflow
	d.buf, d.voiced, d.overflow = nil, 0, false

	if overflow || voiced < d.minVoiced {
		return false
	}
	if !d.lastTrigger.IsZero() && d.now().Sub(d.lastTrigger) < d.refractory {
		return false
	}
	if d.transcriber == nil {
		return false
	}

	text, err := d.transcriber.Transcribe(ctx, pcm, d.sampleRate)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("wakeword transcription via %s failed: %v", d.transcriber.Name(), err)
		}
		return false
	}
	if !d.matches(text) {
		return false
	}
	d.lastTrigger = d.now()
	return true
}

// Reset drops any partial utterance, e.g. after the capture stream reopens.
func (d *PhraseDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vad.Reset()
	d.buf, d.voiced, d.overflow = nil, 0, false
}

func (d *PhraseDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.buf = nil
	return nil
}

func (d *PhraseDetector) matches(text string) bool {
	padded := " " + normalize(text) + " "
	for _, k := range d.keywords {
		if strings.Contains(padded, " "+k+" ") {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		case r == '\'':
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
