package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceBusy is returned when a capture stream is requested while another
// consumer still holds one open.
var ErrDeviceBusy = errors.New("audio capture device busy")

// Stream is an open capture stream delivering fixed-size mono PCM16 frames.
type Stream interface {
	Read() ([]int16, error)
	Stop() error
	Close() error
}

// Device opens capture streams. Close releases the audio subsystem itself.
type Device interface {
	Open(sampleRate, frameSize int) (Stream, error)
	Close() error
}

// Player plays mono PCM16LE audio to the default output.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// ExclusiveDevice allows at most one open capture stream at a time.
type ExclusiveDevice struct {
	inner Device

	mu       sync.Mutex
	holder   string
	open     int
	peak     int
	opened   int
	rejected int
}

func NewExclusiveDevice(inner Device) *ExclusiveDevice {
	return &ExclusiveDevice{inner: inner}
}

// OpenFor opens a stream on behalf of owner. The returned stream releases the
// device when closed.
func (d *ExclusiveDevice) OpenFor(owner string, sampleRate, frameSize int) (Stream, error) {
	d.mu.Lock()
	if d.open > 0 {
		holder := d.holder
		d.rejected++
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: held by %s", ErrDeviceBusy, holder)
	}
	d.open++
	d.holder = owner
	d.mu.Unlock()

	s, err := d.inner.Open(sampleRate, frameSize)
	if err != nil {
		d.release()
		return nil, err
	}

	d.mu.Lock()
	d.opened++
	if d.open > d.peak {
		d.peak = d.open
	}
	d.mu.Unlock()
	return &exclusiveStream{Stream: s, device: d}, nil
}

func (d *ExclusiveDevice) Open(sampleRate, frameSize int) (Stream, error) {
	return d.OpenFor("anonymous", sampleRate, frameSize)
}

func (d *ExclusiveDevice) Close() error {
	return d.inner.Close()
}

// Holder returns the current owner, or "" when no stream is open.
func (d *ExclusiveDevice) Holder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holder
}

// PeakOpen reports the highest number of simultaneously open streams seen.
func (d *ExclusiveDevice) PeakOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

// OpenCount reports how many streams were successfully opened in total.
func (d *ExclusiveDevice) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Rejected reports how many opens failed with ErrDeviceBusy.
func (d *ExclusiveDevice) Rejected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejected
}

func (d *ExclusiveDevice) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open > 0 {
		d.open--
	}
	if d.open == 0 {
		d.holder = ""
	}
}

type exclusiveStream struct {
	Stream
	device    *ExclusiveDevice
	closeOnce sync.Once
}

func (s *exclusiveStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Stream.Close()
		s.device.release()
	})
	return err
}
