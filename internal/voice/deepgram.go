package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/reliability"
)

const (
	deepgramDefaultWSURL = "wss://api.deepgram.com/v1/listen"
	deepgramDefaultModel = "nova-2-general"
	deepgramChunkSamples = 4096
	deepgramDialAttempts = 3
)

type DeepgramConfig struct {
	APIKey string
	WSURL  string
	Model  string

	ReadTimeout time.Duration
}

// DeepgramSTT transcribes a finished utterance over the live listen websocket:
// the PCM is streamed as linear16, the stream is closed, and final results
// are joined until the server closes the connection.
type DeepgramSTT struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	ErrMsg string `json:"err_msg"`
}

func NewDeepgramSTT(cfg DeepgramConfig) *DeepgramSTT {
	if strings.TrimSpace(cfg.WSURL) == "" {
		cfg.WSURL = deepgramDefaultWSURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = deepgramDefaultModel
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultStreamReadTimeout
	}
	return &DeepgramSTT{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (d *DeepgramSTT) Name() string { return "deepgram" }

func (d *DeepgramSTT) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	u, err := url.Parse(d.cfg.WSURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", d.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+d.cfg.APIKey)

	var conn *websocket.Conn
	policy := reliability.Policy{Attempts: deepgramDialAttempts, Base: 150 * time.Millisecond, Limit: time.Second}
	err = reliability.Do(ctx, policy, func(ctx context.Context) error {
		c, resp, err := d.dialer.DialContext(ctx, u.String(), header)
		if err == nil {
			conn = c
			return nil
		}
		err = fmt.Errorf("dial deepgram websocket: %w", err)
		if resp == nil || !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return reliability.Permanent(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for start := 0; start < len(pcm); start += deepgramChunkSamples {
		end := min(start+deepgramChunkSamples, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio.Int16ToBytes(pcm[start:end])); err != nil {
			return "", fmt.Errorf("deepgram send audio: %w", err)
		}
	}
	if err := conn.WriteJSON(map[string]string{"type": "CloseStream"}); err != nil {
		return "", fmt.Errorf("deepgram close stream: %w", err)
	}

	var parts []string
	for {
		_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				break
			}
			if len(parts) > 0 {
				break
			}
			return "", fmt.Errorf("deepgram read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var res deepgramResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.ErrMsg != "" {
			return "", fmt.Errorf("deepgram error: %s", res.ErrMsg)
		}
		if res.Type == "Metadata" {
			break
		}
		if !res.IsFinal || len(res.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(res.Channel.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
