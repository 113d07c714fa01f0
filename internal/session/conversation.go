package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/tars/internal/brain"
	"github.com/ent0n29/tars/internal/memory"
	"github.com/ent0n29/tars/internal/observability"
	"github.com/ent0n29/tars/internal/voice"
)

const (
	DefaultTurnLimit      = 5
	DefaultIdleTimeout    = 10 * time.Second
	DefaultCaptureTimeout = 5 * time.Second
	defaultHistoryTurns   = 3
)

type Config struct {
	AssistantName  string
	TurnLimit      int
	IdleTimeout    time.Duration
	CaptureTimeout time.Duration
	// HistoryTurns is how many earlier exchanges are passed to the generator.
	HistoryTurns int
	ExitPhrases  []string
	Farewells    []string
	Out          io.Writer
}

// Deps are the collaborators a session drives. Listener, Responder and
// Speaker are required.
type Deps struct {
	Listener  voice.CommandListener
	Responder Responder
	Speaker   Speaker
	Humor     HumorReader
	Memory    memory.Store
	Rand      Rand
	Metrics   *observability.Metrics
	Observer  Observer
	Now       func() time.Time
}

// Conversation runs one bounded dialogue after a wake trigger.
type Conversation struct {
	cfg   Config
	deps  Deps
	state State
	// idleSince is the start of the current idle window: session start, then
	// the end of each completed turn.
	idleSince time.Time
}

func New(cfg Config, deps Deps) *Conversation {
	if cfg.TurnLimit <= 0 {
		cfg.TurnLimit = DefaultTurnLimit
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	} else if cfg.HistoryTurns == 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	if cfg.ExitPhrases == nil {
		cfg.ExitPhrases = defaultExitPhrases
	}
	if cfg.Farewells == nil {
		cfg.Farewells = defaultFarewells
	}
	if strings.TrimSpace(cfg.AssistantName) == "" {
		cfg.AssistantName = "TARS"
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Conversation{
		cfg:   cfg,
		deps:  deps,
		state: State{ID: uuid.NewString()},
	}
}

func (c *Conversation) ID() string { return c.state.ID }

// Run drives the session until the turn cap, the idle timeout, an exit
// phrase or cancellation. It never returns an error: every adapter failure
// is absorbed below this layer.
func (c *Conversation) Run(ctx context.Context) Result {
	c.state.StartedAt = c.deps.Now()
	c.idleSince = c.state.StartedAt
	c.deps.Metrics.SessionStarted()
	log.Printf("session %s started", c.state.ID)

	for {
		if ctx.Err() != nil {
			return c.end(ReasonCancelled)
		}
		if c.state.TurnCount >= c.cfg.TurnLimit {
			return c.end(ReasonTurnLimit)
		}
		remaining := c.cfg.IdleTimeout - c.deps.Now().Sub(c.idleSince)
		if remaining <= 0 {
			return c.end(ReasonIdleTimeout)
		}

		c.setPhase(PhaseListening)
		captureStart := c.deps.Now()
		utt := c.deps.Listener.Capture(ctx, min(c.cfg.CaptureTimeout, remaining))
		c.deps.Metrics.ObserveTurnStage("capture", c.deps.Now().Sub(captureStart))
		if utt.Empty() {
			continue
		}
		if ctx.Err() != nil {
			return c.end(ReasonCancelled)
		}

		text := strings.TrimSpace(utt.Text)
		fmt.Fprintf(c.cfg.Out, "You said: %s\n", text)
		c.setPhase(PhaseThinking)

		if containsExitPhrase(text, c.cfg.ExitPhrases) {
			bye := farewell(c.humor(), c.cfg.Farewells, c.deps.Rand)
			c.say(ctx, bye)
			return c.end(ReasonExitPhrase)
		}

		c.turn(ctx, text, captureStart)
	}
}

func (c *Conversation) turn(ctx context.Context, text string, started time.Time) {
	turnID := uuid.NewString()
	level := c.humor()

	genStart := c.deps.Now()
	reply := c.deps.Responder.Generate(ctx, brain.Request{
		SessionID: c.state.ID,
		TurnID:    turnID,
		Text:      text,
		Humor:     level,
		History:   c.history(ctx),
	})
	c.deps.Metrics.ObserveTurnStage("generate", c.deps.Now().Sub(genStart))

	c.setPhase(PhaseSpeaking)
	c.say(ctx, reply)

	c.remember(ctx, text, reply.Text())
	now := c.deps.Now()
	c.state.TurnCount++
	c.state.LastTurnAt = now
	c.idleSince = now
	c.deps.Metrics.TurnCompleted()
	c.deps.Metrics.ObserveTurnStage("turn_total", now.Sub(started))
}

func (c *Conversation) say(ctx context.Context, p voice.Payload) {
	fmt.Fprintf(c.cfg.Out, "%s: %s\n", c.cfg.AssistantName, p.Text())
	start := c.deps.Now()
	c.deps.Speaker.Speak(ctx, p)
	c.deps.Metrics.ObserveTurnStage("synthesize", c.deps.Now().Sub(start))
}

func (c *Conversation) humor() int {
	if c.deps.Humor == nil {
		return 0
	}
	return c.deps.Humor.Level()
}

func (c *Conversation) history(ctx context.Context) []string {
	if c.deps.Memory == nil || c.cfg.HistoryTurns == 0 {
		return nil
	}
	records, err := c.deps.Memory.RecentTurns(ctx, c.state.ID, c.cfg.HistoryTurns*2)
	if err != nil {
		log.Printf("session %s memory read failed: %v", c.state.ID, err)
		return nil
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, brain.MemoryLine(r.Role, r.Content))
	}
	return lines
}

func (c *Conversation) remember(ctx context.Context, userText, replyText string) {
	if c.deps.Memory == nil {
		return
	}
	for _, rec := range []memory.TurnRecord{
		memory.NewRedactedTurn(c.state.ID, c.state.TurnCount, memory.RoleUser, userText),
		memory.NewRedactedTurn(c.state.ID, c.state.TurnCount, memory.RoleAssistant, replyText),
	} {
		rec.CreatedAt = c.deps.Now().UTC()
		if err := c.deps.Memory.SaveTurn(ctx, rec); err != nil {
			log.Printf("session %s memory write failed: %v", c.state.ID, err)
			return
		}
	}
}

func (c *Conversation) setPhase(p Phase) {
	if c.state.Phase == p {
		return
	}
	c.state.Phase = p
	if c.deps.Observer != nil {
		c.deps.Observer(c.state)
	}
}

func (c *Conversation) end(reason Reason) Result {
	c.setPhase(PhaseEnding)
	c.deps.Metrics.SessionEnded(string(reason))
	log.Printf("session %s ended after %d turns: %s", c.state.ID, c.state.TurnCount, reason)
	return Result{State: c.state, Reason: reason}
}
