package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/reliability"
	"github.com/gorilla/websocket"
)

const (
	elevenLabsDefaultWSBaseURL = "wss://api.elevenlabs.io"
	elevenLabsDefaultModelID   = "eleven_turbo_v2_5"
	elevenLabsOutputFormat     = "pcm_16000"
	elevenLabsSampleRate       = 16000
	elevenLabsDialAttempts     = 3
	// Longest silence tolerated between two server messages.
	defaultStreamReadTimeout   = 10 * time.Second
)

type TTSSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

type ElevenLabsConfig struct {
	APIKey    string
	WSBaseURL string
	VoiceID   string
	ModelID   string
	Settings  TTSSettings

	ReadTimeout time.Duration
}

// ElevenLabsTTS streams text over the stream-input websocket and plays the
// returned 16 kHz PCM.
type ElevenLabsTTS struct {
	cfg    ElevenLabsConfig
	player audio.Player
	dialer *websocket.Dialer
}

func NewElevenLabsTTS(cfg ElevenLabsConfig, player audio.Player) (*ElevenLabsTTS, error) {
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, errors.New("elevenlabs voice_id is required")
	}
	if player == nil {
		return nil, errors.New("elevenlabs tts requires an audio player")
	}
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = elevenLabsDefaultWSBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = elevenLabsDefaultModelID
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultStreamReadTimeout
	}
	return &ElevenLabsTTS{cfg: cfg, player: player, dialer: websocket.DefaultDialer}, nil
}

func (t *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (t *ElevenLabsTTS) Speak(ctx context.Context, p Payload) error {
	text := sanitizeSpeechText(p.Text())
	if text == "" {
		return nil
	}
	pcm, err := t.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return t.player.Play(ctx, pcm, elevenLabsSampleRate)
}

func (t *ElevenLabsTTS) synthesize(ctx context.Context, text string) ([]byte, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := t.cfg.Settings
	// The first message primes the stream with voice settings.
	if err := conn.WriteJSON(map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        clampFloat(orDefault(s.Stability, 0.42), 0, 1),
			"similarity_boost": clampFloat(orDefault(s.SimilarityBoost, 0.85), 0, 1),
			"speed":            clampFloat(orDefault(s.Speed, 1.0), 0.7, 1.2),
		},
	}); err != nil {
		return nil, fmt.Errorf("elevenlabs init: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"text": text + " ", "try_trigger_generation": true}); err != nil {
		return nil, fmt.Errorf("elevenlabs send text: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"text": ""}); err != nil {
		return nil, fmt.Errorf("elevenlabs close input: %w", err)
	}

	var pcm []byte
	for {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if len(pcm) > 0 && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return pcm, nil
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		if errMsg := asString(raw["error"]); errMsg != "" {
			return nil, fmt.Errorf("elevenlabs error %s: %s", asString(raw["message_type"]), errMsg)
		}
		if chunk := asString(raw["audio"]); chunk != "" {
			decoded, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs decode audio: %w", err)
			}
			pcm = append(pcm, decoded...)
		}
		if asBool(raw["isFinal"]) || asBool(raw["is_final"]) {
			if len(pcm) == 0 {
				return nil, errors.New("elevenlabs returned no audio")
			}
			return pcm, nil
		}
	}
}

// dial retries handshakes rejected with a retryable HTTP status.
func (t *ElevenLabsTTS) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(t.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(t.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model_id", t.cfg.ModelID)
	q.Set("output_format", elevenLabsOutputFormat)
	q.Set("auto_mode", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", t.cfg.APIKey)

	var conn *websocket.Conn
	policy := reliability.Policy{Attempts: elevenLabsDialAttempts, Base: 150 * time.Millisecond, Limit: time.Second}
	err = reliability.Do(ctx, policy, func(ctx context.Context) error {
		c, resp, err := t.dialer.DialContext(ctx, u.String(), headers)
		if err == nil {
			conn = c
			return nil
		}
		err = fmt.Errorf("dial tts websocket: %w", err)
		if resp == nil || !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return reliability.Permanent(err)
		}
		return err
	})
	return conn, err
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
