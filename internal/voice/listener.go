package voice

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ent0n29/tars/internal/audio"
)

const (
	listenerOwner              = "listener"
	defaultCaptureEndSilence   = 800 * time.Millisecond
	defaultCaptureMaxUtterance = 15 * time.Second
	listenerPreRollFrames      = 8
	// Extra wall-clock time a capture phase may take beyond its audio budget
	// before the device is treated as stalled.
	defaultCaptureStallGrace   = 2 * time.Second
)

var errCaptureStalled = errors.New("capture device stopped delivering frames")

type ListenerConfig struct {
	SampleRate   int
	FrameSize    int
	EndSilence   time.Duration
	MaxUtterance time.Duration
	StallGrace   time.Duration
}

// Listener captures one command through the exclusive capture device and
// transcribes it. Timing is measured in captured audio, so it follows the
// device clock; a wall-clock guard catches a device that stops delivering.
type Listener struct {
	device      *audio.ExclusiveDevice
	transcriber Transcriber
	cfg         ListenerConfig
	now         func() time.Time
}

func NewListener(device *audio.ExclusiveDevice, transcriber Transcriber, cfg ListenerConfig) *Listener {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.DefaultFrameSize
	}
	if cfg.EndSilence <= 0 {
		cfg.EndSilence = defaultCaptureEndSilence
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = defaultCaptureMaxUtterance
	}
	if cfg.StallGrace <= 0 {
		cfg.StallGrace = defaultCaptureStallGrace
	}
	return &Listener{device: device, transcriber: transcriber, cfg: cfg, now: time.Now}
}

// Capture waits up to timeout for speech onset, records until trailing
// silence or the utterance cap, then transcribes. Every failure yields an
// empty utterance. A device failure still occupies the whole capture window,
// so callers looping on Capture retry the device at most once per window.
func (l *Listener) Capture(ctx context.Context, timeout time.Duration) Utterance {
	if ctx.Err() != nil || timeout <= 0 {
		return Utterance{}
	}
	window := time.NewTimer(timeout)
	defer window.Stop()

	pcm, onset, err := l.record(ctx, timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Utterance{}
		}
		log.Printf("capture failed: %v", err)
		select {
		case <-window.C:
		case <-ctx.Done():
		}
		return Utterance{}
	}
	if len(pcm) == 0 || l.transcriber == nil {
		return Utterance{}
	}

	text, err := l.transcriber.Transcribe(ctx, pcm, l.cfg.SampleRate)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("transcription via %s failed: %v", l.transcriber.Name(), err)
		}
		return Utterance{}
	}
	return Utterance{Text: strings.TrimSpace(text), CapturedAt: onset}
}

type capturedFrame struct {
	pcm []int16
	err error
}

// record returns nil pcm when no speech started within timeout. Frames are
// read on a separate goroutine, which also closes the stream. record waits
// for it before returning unless the device stalled.
func (l *Listener) record(ctx context.Context, timeout time.Duration) ([]int16, time.Time, error) {
	stream, err := l.device.OpenFor(listenerOwner, l.cfg.SampleRate, l.cfg.FrameSize)
	if err != nil {
		return nil, time.Time{}, err
	}

	frameCh := make(chan capturedFrame)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer func() {
			_ = stream.Stop()
			_ = stream.Close()
		}()
		for {
			frame, err := stream.Read()
			select {
			case frameCh <- capturedFrame{pcm: frame, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	stalled := false
	defer func() {
		close(done)
		if stalled {
			return
		}
		select {
		case <-exited:
		case <-time.After(l.cfg.StallGrace):
		}
	}()

	guard := time.NewTimer(timeout + l.cfg.StallGrace)
	defer guard.Stop()

	vad := audio.NewRMSVAD()
	waitBudget := audio.DurationSamples(l.cfg.SampleRate, timeout.Milliseconds())
	silenceBudget := audio.DurationSamples(l.cfg.SampleRate, l.cfg.EndSilence.Milliseconds())
	maxSamples := audio.DurationSamples(l.cfg.SampleRate, l.cfg.MaxUtterance.Milliseconds())

	var (
		preRoll  [][]int16
		pcm      []int16
		onset    time.Time
		waited   int
		silence  int
		speaking bool
	)
	for {
		var frame []int16
		select {
		case <-ctx.Done():
			return nil, time.Time{}, ctx.Err()
		case <-guard.C:
			stalled = true
			return nil, time.Time{}, errCaptureStalled
		case got := <-frameCh:
			if got.err != nil {
				return nil, time.Time{}, got.err
			}
			frame = got.pcm
		}
		if len(frame) == 0 {
			continue
		}

		if !speaking {
			waited += len(frame)
			if vad.IsSpeech(frame) {
				speaking = true
				onset = l.now()
				for _, f := range preRoll {
					pcm = append(pcm, f...)
				}
				pcm = append(pcm, frame...)
				guard.Reset(l.cfg.MaxUtterance + l.cfg.StallGrace)
				continue
			}
			preRoll = append(preRoll, append([]int16(nil), frame...))
			if len(preRoll) > listenerPreRollFrames {
				preRoll = preRoll[1:]
			}
			if waited >= waitBudget {
				return nil, time.Time{}, nil
			}
			continue
		}

		pcm = append(pcm, frame...)
		if audio.RMS(frame) < vad.SilenceThreshold {
			silence += len(frame)
		} else {
			silence = 0
		}
		if silence >= silenceBudget || len(pcm) >= maxSamples {
			return pcm, onset, nil
		}
	}
}
