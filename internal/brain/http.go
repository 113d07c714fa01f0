package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/tars/internal/reliability"
)

const httpAdapterAttempts = 3

// HTTPAdapter forwards requests to a generic JSON endpoint. The reply may be a
// JSON object carrying text/output/message or a plain text body.
type HTTPAdapter struct {
	url     string
	client  *http.Client
	backoff time.Duration
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: 200 * time.Millisecond,
	}
}

func (a *HTTPAdapter) Name() string { return "http" }

func (a *HTTPAdapter) Respond(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var resp MessageResponse
	policy := reliability.Policy{Attempts: httpAdapterAttempts, Base: a.backoff, Limit: 2 * time.Second}
	err = reliability.Do(ctx, policy, func(ctx context.Context) error {
		r, retryable, err := a.send(ctx, payload)
		if err != nil && !retryable {
			return reliability.Permanent(err)
		}
		resp = r
		return err
	})
	if err != nil {
		return MessageResponse{}, err
	}
	return resp, nil
}

func (a *HTTPAdapter) send(ctx context.Context, payload []byte) (MessageResponse, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return MessageResponse{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return MessageResponse{}, false, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return MessageResponse{}, reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("brain http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return MessageResponse{}, false, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return MessageResponse{Text: strings.TrimSpace(string(body)), Provider: a.Name()}, false, nil
	}
	return MessageResponse{Text: strings.TrimSpace(extractText(obj)), Provider: a.Name()}, false, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "output", "message", "reply"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
