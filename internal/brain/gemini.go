package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter generates replies through the Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	return newGeminiAdapter(ctx, apiKey, model, "")
}

func newGeminiAdapter(ctx context.Context, apiKey, model, baseURL string) (*GeminiAdapter, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) Respond(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	contents := make([]*genai.Content, 0, len(req.MemoryContext)+1)
	for _, line := range req.MemoryContext {
		role, text := splitMemoryLine(line)
		if text == "" {
			continue
		}
		r := genai.Role(genai.RoleUser)
		if role == RoleAssistant {
			r = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, r))
	}
	contents = append(contents, genai.NewContentFromText(req.InputText, genai.RoleUser))

	var cfg *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		}
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return MessageResponse{}, errors.New("gemini returned empty content")
	}
	return MessageResponse{Text: text, Provider: a.Name()}, nil
}
