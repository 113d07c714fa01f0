package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChainAdapter asks each backend in turn and returns the first reply.
// Cancellation stops the walk immediately.
type ChainAdapter struct {
	links []Adapter
}

func NewChainAdapter(links ...Adapter) *ChainAdapter {
	kept := make([]Adapter, 0, len(links))
	for _, a := range links {
		if a != nil {
			kept = append(kept, a)
		}
	}
	return &ChainAdapter{links: kept}
}

func (c *ChainAdapter) Name() string {
	if len(c.links) == 0 {
		return "none"
	}
	names := make([]string, len(c.links))
	for i, a := range c.links {
		names[i] = a.Name()
	}
	return strings.Join(names, ">")
}

func (c *ChainAdapter) Respond(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	if len(c.links) == 0 {
		return MessageResponse{}, errors.New("no brain backend configured")
	}
	var errs []error
	for _, a := range c.links {
		resp, err := a.Respond(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return MessageResponse{}, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
	}
	return MessageResponse{}, errors.Join(errs...)
}
