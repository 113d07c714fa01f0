package app

import (
	"fmt"
	"log"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/config"
	"github.com/ent0n29/tars/internal/voice"
)

type voiceSetup struct {
	transcriber voice.Transcriber
	primaryTTS  voice.TTSBackend
	fallbackTTS voice.TTSBackend
	detail      string
}

func resolveVoiceProviders(cfg config.Config, player audio.Player) (voiceSetup, error) {
	var setup voiceSetup

	sttPrimary, sttSecondary := cfg.ResolveSTT()
	primarySTT, err := newTranscriber(cfg, sttPrimary)
	if err != nil {
		return voiceSetup{}, err
	}
	primarySTT = voice.NewTimeoutTranscriber(primarySTT, cfg.STTTimeout)
	if sttSecondary != "" {
		secondarySTT, err := newTranscriber(cfg, sttSecondary)
		if err != nil {
			return voiceSetup{}, err
		}
		secondarySTT = voice.NewTimeoutTranscriber(secondarySTT, cfg.STTTimeout)
		setup.transcriber = voice.NewFailoverTranscriber(primarySTT, secondarySTT)
	} else {
		setup.transcriber = primarySTT
	}

	ttsPrimary, ttsSecondary := cfg.ResolveTTS()
	setup.primaryTTS, err = newTTS(cfg, ttsPrimary, player)
	if err != nil {
		if ttsPrimary != "system" {
			return voiceSetup{}, err
		}
		// No speech command installed: responses are printed only.
		log.Printf("%v; responses will be printed", err)
		setup.primaryTTS = nil
	} else {
		setup.primaryTTS = voice.NewTimeoutTTS(setup.primaryTTS, cfg.TTSTimeout)
	}
	if ttsSecondary != "" {
		setup.fallbackTTS, err = newTTS(cfg, ttsSecondary, player)
		if err != nil {
			log.Printf("secondary tts unavailable: %v", err)
			setup.fallbackTTS = nil
		} else {
			setup.fallbackTTS = voice.NewTimeoutTTS(setup.fallbackTTS, cfg.TTSTimeout)
		}
	}

	setup.detail = fmt.Sprintf("stt=%s tts=%s", setup.transcriber.Name(), ttsName(setup.primaryTTS, setup.fallbackTTS))
	return setup, nil
}

func newTranscriber(cfg config.Config, provider string) (voice.Transcriber, error) {
	switch provider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=deepgram but DEEPGRAM_API_KEY is not set")
		}
		return voice.NewDeepgramSTT(voice.DeepgramConfig{
			APIKey: cfg.DeepgramAPIKey,
			WSURL:  cfg.DeepgramWSURL,
			Model:  cfg.DeepgramModel,
		}), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		return voice.NewOpenAIWhisper(openAIVoiceConfig(cfg)), nil
	case "mock":
		return voice.NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("invalid STT_PROVIDER: %q (expected auto|deepgram|openai|mock)", provider)
	}
}

func newTTS(cfg config.Config, provider string, player audio.Player) (voice.TTSBackend, error) {
	switch provider {
	case "elevenlabs":
		return voice.NewElevenLabsTTS(voice.ElevenLabsConfig{
			APIKey:    cfg.ElevenLabsAPIKey,
			WSBaseURL: cfg.ElevenLabsWSBaseURL,
			VoiceID:   cfg.ElevenLabsTTSVoice,
			ModelID:   cfg.ElevenLabsTTSModel,
		}, player)
	case "openai":
		return voice.NewOpenAITTS(openAIVoiceConfig(cfg), player)
	case "system":
		return voice.NewSystemTTS(cfg.SystemTTSCommand)
	case "mock":
		return voice.NewMockTTS("mock"), nil
	default:
		return nil, fmt.Errorf("invalid TTS_PROVIDER: %q (expected auto|elevenlabs|openai|system|mock)", provider)
	}
}

func openAIVoiceConfig(cfg config.Config) voice.OpenAIConfig {
	return voice.OpenAIConfig{
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		STTModel: cfg.OpenAISTTModel,
		TTSModel: cfg.OpenAITTSModel,
		TTSVoice: cfg.OpenAITTSVoice,
	}
}

func ttsName(primary, secondary voice.TTSBackend) string {
	switch {
	case primary != nil && secondary != nil:
		return primary.Name() + "+" + secondary.Name()
	case primary != nil:
		return primary.Name()
	case secondary != nil:
		return secondary.Name()
	default:
		return "print"
	}
}
