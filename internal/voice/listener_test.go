package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/tars/internal/audio"
)

const testFrame = 512

// frameScript yields the scripted frames in order, then silence forever.
type frameScript struct {
	mu     sync.Mutex
	frames [][]int16
	err    error
}

func (s *frameScript) next(n int) ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frames) == 0 {
		return make([]int16, n), nil
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func frames(count int, amplitude int16) [][]int16 {
	out := make([][]int16, count)
	for i := range out {
		f := make([]int16, testFrame)
		for j := range f {
			f[j] = amplitude
		}
		out[i] = f
	}
	return out
}

type recordingTranscriber struct {
	text    string
	err     error
	calls   int
	samples int
}

func (r *recordingTranscriber) Name() string { return "recording" }

func (r *recordingTranscriber) Transcribe(_ context.Context, pcm []int16, _ int) (string, error) {
	r.calls++
	r.samples = len(pcm)
	return r.text, r.err
}

func newTestListener(script *frameScript, stt Transcriber) (*Listener, *audio.MockDevice, *audio.ExclusiveDevice) {
	mock := audio.NewMockDevice(script.next)
	dev := audio.NewExclusiveDevice(mock)
	l := NewListener(dev, stt, ListenerConfig{SampleRate: 16000, FrameSize: testFrame})
	return l, mock, dev
}

func TestListenerCapturesSpeechUntilTrailingSilence(t *testing.T) {
	script := &frameScript{}
	script.frames = append(script.frames, frames(5, 0)...)
	script.frames = append(script.frames, frames(20, 4000)...)
	stt := &recordingTranscriber{text: "  what is your honesty setting  "}
	l, mock, _ := newTestListener(script, stt)

	u := l.Capture(context.Background(), 5*time.Second)
	if u.Text != "what is your honesty setting" {
		t.Fatalf("Capture() text = %q", u.Text)
	}
	if u.CapturedAt.IsZero() {
		t.Fatalf("Capture() CapturedAt is zero")
	}
	if stt.calls != 1 {
		t.Fatalf("transcriber calls = %d, want 1", stt.calls)
	}
	if stt.samples < 20*testFrame {
		t.Fatalf("transcribed samples = %d, want at least the speech frames", stt.samples)
	}
	if mock.OpenStreams() != 0 {
		t.Fatalf("open streams after capture = %d, want 0", mock.OpenStreams())
	}
}

func TestListenerTimesOutWithoutSpeech(t *testing.T) {
	stt := &recordingTranscriber{text: "never"}
	l, mock, _ := newTestListener(&frameScript{}, stt)

	if u := l.Capture(context.Background(), time.Second); !u.Empty() {
		t.Fatalf("Capture() = %q, want empty", u.Text)
	}
	if stt.calls != 0 {
		t.Fatalf("transcriber called %d times on silence", stt.calls)
	}
	if mock.OpenStreams() != 0 {
		t.Fatalf("stream left open after timeout")
	}
}

func TestListenerStopsAtMaxUtterance(t *testing.T) {
	script := &frameScript{frames: frames(1000, 4000)}
	stt := &recordingTranscriber{text: "long"}
	mock := audio.NewMockDevice(script.next)
	l := NewListener(audio.NewExclusiveDevice(mock), stt, ListenerConfig{
		SampleRate:   16000,
		FrameSize:    testFrame,
		MaxUtterance: time.Second,
	})

	if u := l.Capture(context.Background(), time.Second); u.Text != "long" {
		t.Fatalf("Capture() = %q, want long", u.Text)
	}
	if stt.samples > 16000+10*testFrame {
		t.Fatalf("transcribed %d samples, want capped near one second", stt.samples)
	}
}

func TestListenerFailuresYieldEmptyUtterance(t *testing.T) {
	t.Run("device busy", func(t *testing.T) {
		stt := &recordingTranscriber{text: "x"}
		l, _, dev := newTestListener(&frameScript{frames: frames(30, 4000)}, stt)
		held, err := dev.OpenFor("wakeword", 16000, testFrame)
		if err != nil {
			t.Fatalf("OpenFor() error = %v", err)
		}
		defer held.Close()

		if u := l.Capture(context.Background(), 100*time.Millisecond); !u.Empty() {
			t.Fatalf("Capture() = %q, want empty while device busy", u.Text)
		}
		if dev.PeakOpen() != 1 {
			t.Fatalf("peak open = %d, want 1", dev.PeakOpen())
		}
	})

	t.Run("read error", func(t *testing.T) {
		stt := &recordingTranscriber{text: "x"}
		l, _, _ := newTestListener(&frameScript{err: errors.New("overflow")}, stt)
		if u := l.Capture(context.Background(), 100*time.Millisecond); !u.Empty() {
			t.Fatalf("Capture() = %q, want empty", u.Text)
		}
	})

	t.Run("transcription error", func(t *testing.T) {
		stt := &recordingTranscriber{text: "x", err: errors.New("503")}
		l, _, _ := newTestListener(&frameScript{frames: frames(30, 4000)}, stt)
		if u := l.Capture(context.Background(), time.Second); !u.Empty() {
			t.Fatalf("Capture() = %q, want empty", u.Text)
		}
		if stt.calls != 1 {
			t.Fatalf("transcriber calls = %d, want 1", stt.calls)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stt := &recordingTranscriber{text: "x"}
		l, mock, _ := newTestListener(&frameScript{frames: frames(30, 4000)}, stt)
		if u := l.Capture(ctx, time.Second); !u.Empty() {
			t.Fatalf("Capture() = %q, want empty", u.Text)
		}
		if mock.Opens() != 0 {
			t.Fatalf("device opened %d times after cancellation", mock.Opens())
		}
	})
}

// brokenDevice fails every open and counts the attempts.
type brokenDevice struct {
	attempts atomic.Int32
}

func (d *brokenDevice) Open(int, int) (audio.Stream, error) {
	d.attempts.Add(1)
	return nil, errors.New("no input device")
}

func (d *brokenDevice) Close() error { return nil }

func TestListenerOpenFailureHoldsCaptureWindow(t *testing.T) {
	dev := &brokenDevice{}
	l := NewListener(audio.NewExclusiveDevice(dev), &recordingTranscriber{text: "x"}, ListenerConfig{SampleRate: 16000, FrameSize: testFrame})

	start := time.Now()
	if u := l.Capture(context.Background(), 150*time.Millisecond); !u.Empty() {
		t.Fatalf("Capture() = %q, want empty", u.Text)
	}
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Fatalf("Capture() returned after %v, want the capture window to elapse", elapsed)
	}
	if got := dev.attempts.Load(); got != 1 {
		t.Fatalf("open attempts = %d, want 1", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	start = time.Now()
	l.Capture(ctx, 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Capture() ignored cancellation for %v", elapsed)
	}
}

func TestListenerGivesUpOnStalledDevice(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	var served atomic.Int32
	source := func(n int) ([]int16, error) {
		if served.Add(1) > 3 {
			<-release
		}
		return make([]int16, n), nil
	}
	mock := audio.NewMockDevice(source)
	stt := &recordingTranscriber{text: "x"}
	l := NewListener(audio.NewExclusiveDevice(mock), stt, ListenerConfig{
		SampleRate: 16000,
		FrameSize:  testFrame,
		StallGrace: 100 * time.Millisecond,
	})

	done := make(chan Utterance, 1)
	go func() { done <- l.Capture(context.Background(), 200*time.Millisecond) }()
	select {
	case u := <-done:
		if !u.Empty() {
			t.Fatalf("Capture() = %q, want empty", u.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Capture() still blocked on a stalled device after 3s")
	}
	if stt.calls != 0 {
		t.Fatalf("transcriber calls = %d, want 0", stt.calls)
	}
}
