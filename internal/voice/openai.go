package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ent0n29/tars/internal/audio"
	openai "github.com/sashabaranov/go-openai"
)

// openAISpeechSampleRate is the fixed rate of the pcm response format.
const openAISpeechSampleRate = 24000

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
	TTSVoice string
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

// OpenAIWhisper uploads the utterance as a WAV file to the transcription API.
type OpenAIWhisper struct {
	client *openai.Client
	model  string
}

func NewOpenAIWhisper(cfg OpenAIConfig) *OpenAIWhisper {
	model := strings.TrimSpace(cfg.STTModel)
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIWhisper{client: newOpenAIClient(cfg), model: model}
}

func (w *OpenAIWhisper) Name() string { return "openai-whisper" }

func (w *OpenAIWhisper) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	wav, err := audio.EncodeWAVPCM16LE(audio.Int16ToBytes(pcm), sampleRate)
	if err != nil {
		return "", err
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "speech.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// OpenAITTS renders speech with the audio/speech API and plays the raw PCM.
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
	player audio.Player
}

func NewOpenAITTS(cfg OpenAIConfig, player audio.Player) (*OpenAITTS, error) {
	if player == nil {
		return nil, errors.New("openai tts requires an audio player")
	}
	model := strings.TrimSpace(cfg.TTSModel)
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := strings.TrimSpace(cfg.TTSVoice)
	if voice == "" {
		voice = string(openai.VoiceOnyx)
	}
	return &OpenAITTS{client: newOpenAIClient(cfg), model: model, voice: voice, player: player}, nil
}

func (t *OpenAITTS) Name() string { return "openai-tts" }

func (t *OpenAITTS) Speak(ctx context.Context, p Payload) error {
	text := sanitizeSpeechText(p.Text())
	if text == "" {
		return nil
	}
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(t.model),
		Input:          text,
		Voice:          openai.SpeechVoice(t.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()
	pcm, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("read openai speech: %w", err)
	}
	if len(pcm) == 0 {
		return errors.New("openai speech returned no audio")
	}
	return t.player.Play(ctx, pcm, openAISpeechSampleRate)
}
