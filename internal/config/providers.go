package config

// ResolveBrain names the generation backend that will answer first.
func (c Config) ResolveBrain() string {
	if c.BrainProvider != "auto" {
		return c.BrainProvider
	}
	switch {
	case c.OpenAIAPIKey != "":
		return "openai"
	case c.GeminiAPIKey != "":
		return "gemini"
	case c.BrainHTTPURL != "":
		return "http"
	default:
		return "mock"
	}
}

// ResolveSTT returns the primary and optional fallback transcription backends.
func (c Config) ResolveSTT() (primary, secondary string) {
	if c.STTProvider != "auto" {
		return c.STTProvider, ""
	}
	switch {
	case c.DeepgramAPIKey != "" && c.OpenAIAPIKey != "":
		return "deepgram", "openai"
	case c.DeepgramAPIKey != "":
		return "deepgram", ""
	case c.OpenAIAPIKey != "":
		return "openai", ""
	default:
		return "mock", ""
	}
}

// ResolveTTS returns the primary and the simpler secondary synthesis backends.
// The system speech command backs every network provider.
func (c Config) ResolveTTS() (primary, secondary string) {
	provider := c.TTSProvider
	if provider == "auto" {
		switch {
		case c.ElevenLabsAPIKey != "":
			provider = "elevenlabs"
		case c.OpenAIAPIKey != "":
			provider = "openai"
		default:
			provider = "system"
		}
	}
	switch provider {
	case "system", "mock":
		return provider, ""
	default:
		return provider, "system"
	}
}
