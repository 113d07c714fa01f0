package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/session"
	"github.com/ent0n29/tars/internal/voice"
	"github.com/ent0n29/tars/internal/wakeword"
)

const (
	DefaultMaxReadFailures = 25
	wakeOwner              = "wakeword"
)

var defaultAcknowledgments = []string{"Huuh?", "Hmm?", "Yes Boss?"}

type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeWaiting      Mode = "waiting_for_wake"
	ModeConversation Mode = "conversation"
	ModeStopped      Mode = "stopped"
)

// Status is a point-in-time view of the controller for status endpoints.
type Status struct {
	Mode     Mode           `json:"mode"`
	Session  *session.State `json:"session,omitempty"`
	Sessions int            `json:"sessions"`
	Humor    int            `json:"humor"`
}

type Config struct {
	SampleRate      int
	FrameSize       int
	MaxReadFailures int
	Acknowledgments []string
	Session         session.Config
}

// Deps holds what the controller owns for its lifetime. Device and Detector
// are released on every exit path of Run.
type Deps struct {
	Device   *audio.ExclusiveDevice
	Detector wakeword.Detector
	Session  session.Deps
}

// Controller alternates wake-word monitoring and conversation sessions.
type Controller struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	stream audio.Stream

	mu     sync.Mutex
	status Status
}

func New(cfg Config, deps Deps) *Controller {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = deps.Detector.SampleRate()
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = deps.Detector.FrameSize()
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultMaxReadFailures
	}
	if len(cfg.Acknowledgments) == 0 {
		cfg.Acknowledgments = defaultAcknowledgments
	}
	if strings.TrimSpace(cfg.Session.AssistantName) == "" {
		cfg.Session.AssistantName = "TARS"
	}
	if cfg.Session.Out == nil {
		cfg.Session.Out = io.Discard
	}
	now := deps.Session.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		now:    now,
		status: Status{Mode: ModeIdle},
	}
}

// Run blocks until ctx is cancelled (returning nil) or the wake stream can
// not be (re)opened. The stream, detector and device are released in that
// order before returning.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		c.setMode(ModeStopped)
		if terr := c.teardown(); terr != nil {
			log.Printf("assistant teardown: %v", terr)
		}
	}()

	if err := c.openWake(); err != nil {
		return err
	}

	failures := 0
	reopened := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := c.stream.Read()
		if err != nil {
			failures++
			if failures <= c.cfg.MaxReadFailures {
				continue
			}
			if reopened {
				return fmt.Errorf("wake stream keeps failing after reopen: %w", err)
			}
			log.Printf("wake stream read failed %d times, reopening: %v", failures, err)
			c.closeWake()
			if err := c.openWake(); err != nil {
				return err
			}
			failures = 0
			reopened = true
			continue
		}
		failures = 0
		reopened = false

		if !c.deps.Detector.Feed(ctx, frame) {
			continue
		}
		c.handleWake(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err := c.openWake(); err != nil {
			return err
		}
	}
}

func (c *Controller) handleWake(ctx context.Context) {
	wokeAt := c.now()
	c.deps.Session.Metrics.WakeTriggered()
	log.Printf("wake word detected")

	// The listener needs the device; the wake stream must be gone first.
	c.closeWake()
	if r, ok := c.deps.Detector.(interface{ Reset() }); ok {
		r.Reset()
	}

	ack := c.acknowledgment()
	fmt.Fprintf(c.cfg.Session.Out, "%s: %s\n", c.cfg.Session.AssistantName, ack)
	if c.deps.Session.Speaker != nil {
		c.deps.Session.Speaker.Speak(ctx, voice.Plain(ack))
	}
	c.deps.Session.Metrics.ObserveTurnStage("wake_to_ack", c.now().Sub(wokeAt))

	deps := c.deps.Session
	deps.Observer = c.observe
	conv := session.New(c.cfg.Session, deps)
	c.mu.Lock()
	c.status.Mode = ModeConversation
	c.status.Sessions++
	c.mu.Unlock()

	res := conv.Run(ctx)

	c.mu.Lock()
	c.status.Session = nil
	c.mu.Unlock()
	log.Printf("conversation %s finished: %s", res.State.ID, res.Reason)
}

func (c *Controller) acknowledgment() string {
	if c.deps.Session.Rand == nil {
		return c.cfg.Acknowledgments[0]
	}
	return c.cfg.Acknowledgments[c.deps.Session.Rand.Intn(len(c.cfg.Acknowledgments))]
}

func (c *Controller) observe(s session.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := s
	c.status.Session = &snap
}

func (c *Controller) openWake() error {
	stream, err := c.deps.Device.OpenFor(wakeOwner, c.cfg.SampleRate, c.cfg.FrameSize)
	if err != nil {
		return fmt.Errorf("open wake stream: %w", err)
	}
	c.stream = stream
	c.setMode(ModeWaiting)
	return nil
}

func (c *Controller) closeWake() {
	if err := c.closeStream(); err != nil {
		log.Printf("close wake stream: %v", err)
	}
}

func (c *Controller) closeStream() error {
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil
	var errs []error
	if err := stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	return errors.Join(errs...)
}

// teardown runs every step even when an earlier one fails.
func (c *Controller) teardown() error {
	var errs []error
	if err := c.closeStream(); err != nil {
		errs = append(errs, err)
	}
	if err := c.deps.Detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if err := c.deps.Device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audio device: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Mode = m
}

// Status returns a copy of the current controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.status
	if st.Session != nil {
		snap := *st.Session
		st.Session = &snap
	}
	if c.deps.Session.Humor != nil {
		st.Humor = c.deps.Session.Humor.Level()
	}
	return st
}
