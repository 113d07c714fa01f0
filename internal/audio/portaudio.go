package audio

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const playbackFramesPerBuffer = 1024

// PortAudioDevice captures mono PCM16 from a PortAudio input device.
type PortAudioDevice struct {
	input     *portaudio.DeviceInfo
	closeOnce sync.Once
}

// NewPortAudioDevice initializes PortAudio and resolves the input device whose
// name contains inputName (case-insensitive). An empty name selects the
// default input; an unmatched name falls back to the first device with input
// channels.
func NewPortAudioDevice(inputName string) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	dev, err := resolveInputDevice(inputName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	log.Printf("audio input: %s (%.0f Hz default)", dev.Name, dev.DefaultSampleRate)
	return &PortAudioDevice{input: dev}, nil
}

func resolveInputDevice(name string) (*portaudio.DeviceInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err == nil && dev != nil {
			return dev, nil
		}
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	var fallback *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		if name != "" && strings.Contains(strings.ToLower(d.Name), name) {
			return d, nil
		}
		if fallback == nil {
			fallback = d
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("no audio input device available")
	}
	if name != "" {
		log.Printf("audio input %q not found, using fallback device %q", name, fallback.Name)
	}
	return fallback, nil
}

func (d *PortAudioDevice) Open(sampleRate, frameSize int) (Stream, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	buffer := make([]int16, frameSize)

	params := portaudio.LowLatencyParameters(d.input, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = frameSize

	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}
	return &portAudioStream{stream: stream, buffer: buffer}, nil
}

// Close terminates the PortAudio subsystem. It is safe to call more than once.
func (d *PortAudioDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

type portAudioStream struct {
	stream  *portaudio.Stream
	buffer  []int16
	stopped bool
}

func (s *portAudioStream) Read() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		if err == portaudio.InputOverflowed {
			// Samples were dropped but the buffer still holds a usable frame.
			frame := make([]int16, len(s.buffer))
			copy(frame, s.buffer)
			return frame, nil
		}
		return nil, err
	}
	frame := make([]int16, len(s.buffer))
	copy(frame, s.buffer)
	return frame, nil
}

func (s *portAudioStream) Stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}

// PortAudioPlayer plays PCM through the default output device. PortAudio must
// already be initialized (see NewPortAudioDevice).
type PortAudioPlayer struct{}

func NewPortAudioPlayer() *PortAudioPlayer { return &PortAudioPlayer{} }

func (p *PortAudioPlayer) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	samples := BytesToInt16(pcm)
	if len(samples) == 0 {
		return nil
	}
	buffer := make([]int16, playbackFramesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buffer), &buffer)
	if err != nil {
		return fmt.Errorf("open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start playback stream: %w", err)
	}
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()

	for offset := 0; offset < len(samples); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[offset:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		offset += n
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write playback stream: %w", err)
		}
	}
	return nil
}

// InputDevice describes a capture-capable device.
type InputDevice struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// ListInputDevices enumerates capture devices. It initializes and terminates
// PortAudio on its own.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	out := make([]InputDevice, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, InputDevice{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}
