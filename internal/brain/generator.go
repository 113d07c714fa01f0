package brain

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/ent0n29/tars/internal/humor"
	"github.com/ent0n29/tars/internal/observability"
	"github.com/ent0n29/tars/internal/voice"
)

const (
	apologyText            = "Sorry, I couldn't process that request."
	defaultGenerateTimeout = 20 * time.Second
)

// HumorSaver persists a new humor level.
type HumorSaver interface {
	Save(ctx context.Context, level int) error
}

// Rand is the randomness source used to pick hesitations.
type Rand interface {
	Intn(n int) int
}

type Request struct {
	SessionID string
	TurnID    string
	Text      string
	Humor     int
	History   []string
}

type GeneratorConfig struct {
	AssistantName string
	Timeout       time.Duration
	Hesitations   bool
}

// Generator turns an utterance into a speakable payload. It never fails:
// humor commands are answered locally and backend failures become a fixed
// apology.
type Generator struct {
	adapter Adapter
	humor   HumorSaver
	rng     Rand
	cfg     GeneratorConfig
	metrics *observability.Metrics
}

func NewGenerator(adapter Adapter, store HumorSaver, rng Rand, cfg GeneratorConfig, metrics *observability.Metrics) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerateTimeout
	}
	if adapter == nil {
		adapter = NewMockAdapter()
	}
	return &Generator{adapter: adapter, humor: store, rng: rng, cfg: cfg, metrics: metrics}
}

func (g *Generator) Generate(ctx context.Context, req Request) voice.Payload {
	if level, isCommand, ok := parseHumorCommand(req.Text); isCommand {
		return g.applyHumor(ctx, level, ok)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.adapter.Respond(callCtx, MessageRequest{
		SessionID:     req.SessionID,
		TurnID:        req.TurnID,
		InputText:     req.Text,
		SystemPrompt:  SystemPrompt(g.cfg.AssistantName, req.Humor),
		MemoryContext: req.History,
		Humor:         req.Humor,
	})
	if err != nil {
		log.Printf("brain %s failed: %v", g.adapter.Name(), err)
		g.metrics.ProviderError(g.adapter.Name(), errorCode(err))
		return g.apology()
	}

	text := stripLeadPreamble(resp.Text)
	if text == "" {
		log.Printf("brain %s returned no usable text", g.adapter.Name())
		g.metrics.ProviderError(g.adapter.Name(), "empty")
		return g.apology()
	}

	var b strings.Builder
	b.WriteString("<speak>")
	if g.cfg.Hesitations && g.rng != nil && len(hesitations) > 0 {
		b.WriteString(hesitations[g.rng.Intn(len(hesitations))])
	}
	b.WriteString(html.EscapeString(text))
	b.WriteString("</speak>")
	return voice.Annotated(b.String())
}

func (g *Generator) applyHumor(ctx context.Context, level int, parsed bool) voice.Payload {
	if !parsed || g.humor == nil {
		return voice.Plain(humorRejection)
	}
	if err := g.humor.Save(ctx, level); err != nil {
		if errors.Is(err, humor.ErrInvalidRange) {
			return voice.Plain(humorRejection)
		}
		log.Printf("save humor %d failed: %v", level, err)
		return g.apology()
	}
	g.metrics.SetHumor(level)
	return voice.Plain(fmt.Sprintf(humorConfirmationFormat, level))
}

func (g *Generator) apology() voice.Payload {
	g.metrics.ObserveIndicator("apology")
	return voice.Plain(apologyText)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
