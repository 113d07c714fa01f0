package audio

import (
	"context"
	"errors"
	"sync"
)

// MockDevice serves frames from a source function instead of a microphone.
// It is used by the mock voice profile and by tests across packages.
type MockDevice struct {
	mu      sync.Mutex
	source  func(n int) ([]int16, error)
	open    int
	maxOpen int
	opens   int
	closed  bool
	openErr error
}

// NewMockDevice returns a device whose streams read frames from source. A nil
// source yields silence.
func NewMockDevice(source func(frameSize int) ([]int16, error)) *MockDevice {
	if source == nil {
		source = func(n int) ([]int16, error) { return make([]int16, n), nil }
	}
	return &MockDevice{source: source}
}

// FailOpen makes subsequent opens fail with err (nil restores normal behavior).
func (d *MockDevice) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

func (d *MockDevice) Open(_ int, frameSize int) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("mock device closed")
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	d.open++
	d.opens++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	return &mockStream{device: d, frameSize: frameSize}, nil
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// MaxConcurrentOpen reports the highest number of simultaneously open streams.
func (d *MockDevice) MaxConcurrentOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

func (d *MockDevice) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type mockStream struct {
	device    *MockDevice
	frameSize int
	once      sync.Once
}

func (s *mockStream) Read() ([]int16, error) {
	return s.device.source(s.frameSize)
}

func (s *mockStream) Stop() error { return nil }

func (s *mockStream) Close() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		s.device.open--
		s.device.mu.Unlock()
	})
	return nil
}

// MockPlayer records played audio without touching an output device.
type MockPlayer struct {
	mu    sync.Mutex
	Err   error
	plays [][]byte
}

func (p *MockPlayer) Play(ctx context.Context, pcm []byte, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.plays = append(p.plays, append([]byte(nil), pcm...))
	return nil
}

func (p *MockPlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}
