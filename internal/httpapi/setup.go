package httpapi

import (
	"net/http"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ent0n29/tars/internal/humor"
)

type setupCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type setupStatusResponse struct {
	BrainProvider string       `json:"brain_provider"`
	STTProvider   string       `json:"stt_provider"`
	TTSProvider   string       `json:"tts_provider"`
	HumorStore    string       `json:"humor_store"`
	MemoryStore   string       `json:"memory_store"`
	Checks        []setupCheck `json:"checks"`
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

func (s *Server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	brain := s.cfg.ResolveBrain()
	stt, sttFallback := s.cfg.ResolveSTT()
	tts, ttsFallback := s.cfg.ResolveTTS()

	checks := make([]setupCheck, 0, 8)
	checks = append(checks, s.keyCheck("brain", "Response generation", brain)...)
	checks = append(checks, s.keyCheck("stt", "Speech-to-text", stt)...)
	if sttFallback != "" {
		checks = append(checks, s.keyCheck("stt_fallback", "Speech-to-text fallback", sttFallback)...)
	}
	checks = append(checks, s.keyCheck("tts", "Text-to-speech", tts)...)
	if tts == "system" || ttsFallback == "system" {
		checks = append(checks, s.systemTTSCheck())
	}

	memoryStore := "in-memory"
	if strings.TrimSpace(s.cfg.DatabaseURL) != "" {
		memoryStore = "postgres"
	}

	respondJSON(w, http.StatusOK, setupStatusResponse{
		BrainProvider: brain,
		STTProvider:   joinProviders(stt, sttFallback),
		TTSProvider:   joinProviders(tts, ttsFallback),
		HumorStore:    humor.BackendKind(s.cfg.HumorStore),
		MemoryStore:   memoryStore,
		Checks:        checks,
	})
}

func (s *Server) keyCheck(id, label, provider string) []setupCheck {
	var key, env string
	switch provider {
	case "openai":
		key, env = s.cfg.OpenAIAPIKey, "OPENAI_API_KEY"
	case "gemini":
		key, env = s.cfg.GeminiAPIKey, "GEMINI_API_KEY"
	case "deepgram":
		key, env = s.cfg.DeepgramAPIKey, "DEEPGRAM_API_KEY"
	case "elevenlabs":
		key, env = s.cfg.ElevenLabsAPIKey, "ELEVENLABS_API_KEY"
	case "http":
		key, env = s.cfg.BrainHTTPURL, "BRAIN_HTTP_URL"
	case "mock":
		return []setupCheck{{
			ID:     id,
			Status: "warn",
			Label:  label,
			Detail: "mock backend",
			Fix:    "Configure a provider API key for real " + strings.ToLower(label) + ".",
		}}
	default:
		return []setupCheck{{ID: id, Status: "ok", Label: label, Detail: provider}}
	}
	if strings.TrimSpace(key) == "" {
		return []setupCheck{{
			ID:     id,
			Status: "error",
			Label:  label,
			Detail: env + " is not set",
			Fix:    "Set " + env + " or choose another provider.",
		}}
	}
	return []setupCheck{{ID: id, Status: "ok", Label: label, Detail: provider}}
}

func (s *Server) systemTTSCheck() setupCheck {
	cmd := strings.TrimSpace(s.cfg.SystemTTSCommand)
	if cmd == "" {
		cmd = "espeak"
		if runtime.GOOS == "darwin" {
			cmd = "say"
		}
	}
	bin := strings.Fields(cmd)[0]
	if _, err := lookPath(bin); err != nil {
		return setupCheck{
			ID:     "system_tts",
			Status: "warn",
			Label:  "System speech command",
			Detail: bin + " not found; responses will be printed",
			Fix:    "Install " + bin + " or set SYSTEM_TTS_COMMAND.",
		}
	}
	return setupCheck{ID: "system_tts", Status: "ok", Label: "System speech command", Detail: bin}
}

func joinProviders(primary, secondary string) string {
	if secondary == "" {
		return primary
	}
	return primary + "+" + secondary
}
