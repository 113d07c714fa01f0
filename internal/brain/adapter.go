package brain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// MessageRequest is the normalized request sent to a generation backend.
type MessageRequest struct {
	SessionID     string   `json:"session_id"`
	TurnID        string   `json:"turn_id"`
	InputText     string   `json:"input_text"`
	SystemPrompt  string   `json:"system_prompt"`
	MemoryContext []string `json:"memory_context,omitempty"`
	Humor         int      `json:"humor"`
}

// MessageResponse is the backend's complete reply.
type MessageResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
}

// Adapter produces a single reply for one request.
type Adapter interface {
	Name() string
	Respond(ctx context.Context, req MessageRequest) (MessageResponse, error)
}

// Config controls adapter construction.
type Config struct {
	Mode string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiAPIKey string
	GeminiModel  string

	HTTPURL string
}

func NewAdapter(ctx context.Context, cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(ctx, cfg), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai mode")
		}
		return NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("GEMINI_API_KEY is required for gemini mode")
		}
		return NewGeminiAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("BRAIN_HTTP_URL is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}

// newAutoAdapter chains every configured backend in the order openai,
// gemini, http and always ends at the mock.
func newAutoAdapter(ctx context.Context, cfg Config) Adapter {
	var chain []Adapter
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		chain = append(chain, NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel))
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := NewGeminiAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("gemini adapter unavailable: %v", err)
		} else {
			chain = append(chain, gemini)
		}
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		chain = append(chain, NewHTTPAdapter(cfg.HTTPURL))
	}

	// Echo only when nothing real is configured.
	if len(chain) == 0 {
		return NewMockAdapter()
	}
	return NewChainAdapter(chain...)
}
