package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice assistant.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AssistantName string
	WakeWords     []string

	SessionTurnLimit    int
	SessionIdleTimeout  time.Duration
	SessionHistoryTurns int
	CaptureTimeout      time.Duration
	CaptureMaxUtterance time.Duration
	CaptureEndSilence   time.Duration

	AudioBackend     string
	AudioInputDevice string
	AudioSampleRate  int
	AudioFrameSize   int

	HumorStore   string
	HumorDefault int
	DatabaseURL  string

	BrainProvider      string
	BrainTimeout       time.Duration
	BrainHTTPURL       string
	HesitationsEnabled bool

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAISTTModel string
	OpenAITTSModel string
	OpenAITTSVoice string

	GeminiAPIKey string
	GeminiModel  string

	STTProvider    string
	STTTimeout     time.Duration
	DeepgramAPIKey string
	DeepgramWSURL  string
	DeepgramModel  string

	TTSProvider         string
	TTSTimeout          time.Duration
	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	ElevenLabsTTSVoice  string
	ElevenLabsTTSModel  string
	SystemTTSCommand    string
}

// HTTPEnabled reports whether the status server should be started.
func (c Config) HTTPEnabled() bool {
	addr := strings.ToLower(strings.TrimSpace(c.BindAddr))
	return addr != "" && addr != "off"
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", "127.0.0.1:8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "tars"),
		AssistantName:       envOrDefault("ASSISTANT_NAME", "TARS"),
		WakeWords:           listFromEnv("WAKE_WORDS", []string{"jarvis"}),
		AudioBackend:        strings.ToLower(envOrDefault("AUDIO_BACKEND", "portaudio")),
		AudioInputDevice:    stringsTrimSpace("AUDIO_INPUT_DEVICE"),
		HumorStore:          envOrDefault("HUMOR_STORE", "tars_config.json"),
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		BrainProvider:       strings.ToLower(envOrDefault("BRAIN_PROVIDER", "auto")),
		BrainHTTPURL:        stringsTrimSpace("BRAIN_HTTP_URL"),
		OpenAIAPIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:       stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAISTTModel:      envOrDefault("OPENAI_STT_MODEL", "whisper-1"),
		OpenAITTSModel:      envOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:      envOrDefault("OPENAI_TTS_VOICE", "onyx"),
		GeminiAPIKey:        stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:         envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		STTProvider:         strings.ToLower(envOrDefault("STT_PROVIDER", "auto")),
		DeepgramAPIKey:      stringsTrimSpace("DEEPGRAM_API_KEY"),
		DeepgramWSURL:       envOrDefault("DEEPGRAM_WS_URL", "wss://api.deepgram.com/v1/listen"),
		DeepgramModel:       envOrDefault("DEEPGRAM_MODEL", "nova-2-general"),
		TTSProvider:         strings.ToLower(envOrDefault("TTS_PROVIDER", "auto")),
		ElevenLabsAPIKey:    stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		// Deep, flat premade voice; closest to the film character.
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "pNInz6obpgDQGcFmaJgB"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		SystemTTSCommand:   stringsTrimSpace("SYSTEM_TTS_COMMAND"),

		ShutdownTimeout:     10 * time.Second,
		SessionTurnLimit:    5,
		SessionIdleTimeout:  10 * time.Second,
		SessionHistoryTurns: 3,
		CaptureTimeout:      5 * time.Second,
		CaptureMaxUtterance: 15 * time.Second,
		CaptureEndSilence:   800 * time.Millisecond,
		AudioSampleRate:     16000,
		AudioFrameSize:      512,
		HumorDefault:        75,
		BrainTimeout:        20 * time.Second,
		STTTimeout:          15 * time.Second,
		TTSTimeout:          30 * time.Second,
		HesitationsEnabled:  true,
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout},
		{"CAPTURE_TIMEOUT", &cfg.CaptureTimeout},
		{"CAPTURE_MAX_UTTERANCE", &cfg.CaptureMaxUtterance},
		{"CAPTURE_END_SILENCE", &cfg.CaptureEndSilence},
		{"BRAIN_TIMEOUT", &cfg.BrainTimeout},
		{"STT_TIMEOUT", &cfg.STTTimeout},
		{"TTS_TIMEOUT", &cfg.TTSTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = durationFromEnv(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"SESSION_TURN_LIMIT", &cfg.SessionTurnLimit},
		{"SESSION_HISTORY_TURNS", &cfg.SessionHistoryTurns},
		{"AUDIO_SAMPLE_RATE", &cfg.AudioSampleRate},
		{"AUDIO_FRAME_SIZE", &cfg.AudioFrameSize},
		{"HUMOR_DEFAULT", &cfg.HumorDefault},
	}
	for _, n := range ints {
		if *n.dst, err = intFromEnv(n.key, *n.dst); err != nil {
			return Config{}, err
		}
	}
	cfg.HesitationsEnabled, err = boolFromEnv("HESITATIONS_ENABLED", cfg.HesitationsEnabled)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks bounds that Load cannot express as defaults.
func (c Config) Validate() error {
	if c.SessionTurnLimit <= 0 {
		return fmt.Errorf("SESSION_TURN_LIMIT must be positive")
	}
	if c.SessionIdleTimeout < time.Second {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be at least 1s")
	}
	if c.CaptureTimeout <= 0 || c.CaptureTimeout > c.SessionIdleTimeout {
		return fmt.Errorf("CAPTURE_TIMEOUT must be positive and at most SESSION_IDLE_TIMEOUT")
	}
	if c.CaptureMaxUtterance <= 0 || c.CaptureEndSilence <= 0 {
		return fmt.Errorf("CAPTURE_MAX_UTTERANCE and CAPTURE_END_SILENCE must be positive")
	}
	if c.SessionHistoryTurns < 0 {
		return fmt.Errorf("SESSION_HISTORY_TURNS must be >= 0")
	}
	if c.HumorDefault < 0 || c.HumorDefault > 100 {
		return fmt.Errorf("HUMOR_DEFAULT must be within 0..100")
	}
	if c.AudioSampleRate <= 0 || c.AudioFrameSize <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE and AUDIO_FRAME_SIZE must be positive")
	}
	if c.BrainTimeout <= 0 {
		return fmt.Errorf("BRAIN_TIMEOUT must be positive")
	}
	if c.STTTimeout <= 0 || c.TTSTimeout <= 0 {
		return fmt.Errorf("STT_TIMEOUT and TTS_TIMEOUT must be positive")
	}
	if len(c.WakeWords) == 0 {
		return fmt.Errorf("WAKE_WORDS must name at least one phrase")
	}
	if err := oneOf("AUDIO_BACKEND", c.AudioBackend, "portaudio", "mock"); err != nil {
		return err
	}
	if err := oneOf("BRAIN_PROVIDER", c.BrainProvider, "auto", "openai", "gemini", "http", "mock"); err != nil {
		return err
	}
	if err := oneOf("STT_PROVIDER", c.STTProvider, "auto", "openai", "deepgram", "mock"); err != nil {
		return err
	}
	return oneOf("TTS_PROVIDER", c.TTSProvider, "auto", "elevenlabs", "openai", "system", "mock")
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func listFromEnv(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
