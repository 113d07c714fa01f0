package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no backend is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) Respond(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	select {
	case <-ctx.Done():
		return MessageResponse{}, ctx.Err()
	default:
	}
	return MessageResponse{Text: buildMockReply(req), Provider: a.Name()}, nil
}

func buildMockReply(req MessageRequest) string {
	base := strings.TrimSpace(req.InputText)
	if base == "" {
		base = "nothing at all"
	}
	reply := fmt.Sprintf("You said %s. Humor is at %d percent.", base, req.Humor)
	if len(req.MemoryContext) == 0 {
		return reply
	}
	last := strings.TrimSpace(req.MemoryContext[len(req.MemoryContext)-1])
	if last == "" {
		return reply
	}
	return fmt.Sprintf("%s Earlier: %s", reply, last)
}
