package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/ent0n29/tars/internal/assistant"
	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/brain"
	"github.com/ent0n29/tars/internal/config"
	"github.com/ent0n29/tars/internal/httpapi"
	"github.com/ent0n29/tars/internal/humor"
	"github.com/ent0n29/tars/internal/memory"
	"github.com/ent0n29/tars/internal/observability"
	"github.com/ent0n29/tars/internal/session"
	"github.com/ent0n29/tars/internal/voice"
	"github.com/ent0n29/tars/internal/wakeword"
)

type ProviderInfo struct {
	Brain string
	Voice string
	Humor string
}

type BuildResult struct {
	Config     config.Config
	Controller *assistant.Controller
	API        *httpapi.Server
	Humor      *humor.Store
	Metrics    *observability.Metrics
	Providers  ProviderInfo

	// Cleanup releases stores opened by Build. The audio device and wake
	// detector are released by Controller.Run.
	Cleanup func() error
}

// Options overrides process-level collaborators; zero values select the
// real ones.
type Options struct {
	Out    io.Writer
	Device audio.Device
	Player audio.Player
}

func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var closers []func() error
	fail := func(err error) (*BuildResult, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	backend, err := humor.NewBackend(ctx, cfg.HumorStore)
	if err != nil {
		return fail(fmt.Errorf("humor store init failed: %w", err))
	}
	humorStore, err := humor.NewStore(backend, cfg.HumorDefault)
	if err != nil {
		_ = backend.Close()
		return fail(fmt.Errorf("humor store init failed: %w", err))
	}
	closers = append(closers, humorStore.Close)
	metrics.SetHumor(humorStore.Load(ctx))

	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("memory store init failed: %w", err))
	}
	closers = append(closers, memoryStore.Close)

	adapter, err := brain.NewAdapter(ctx, brain.Config{
		Mode:          cfg.BrainProvider,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		HTTPURL:       cfg.BrainHTTPURL,
	})
	if err != nil {
		return fail(fmt.Errorf("brain adapter init failed: %w", err))
	}

	device, player, err := openAudio(cfg, opts)
	if err != nil {
		return fail(err)
	}
	exclusive := audio.NewExclusiveDevice(device)

	voiceSetup, err := resolveVoiceProviders(cfg, player)
	if err != nil {
		_ = device.Close()
		return fail(err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	generator := brain.NewGenerator(adapter, humorStore, rng, brain.GeneratorConfig{
		AssistantName: cfg.AssistantName,
		Timeout:       cfg.BrainTimeout,
		Hesitations:   cfg.HesitationsEnabled,
	}, metrics)

	synth := voice.NewSynthesizer(voiceSetup.primaryTTS, voiceSetup.fallbackTTS, out, cfg.AssistantName)

	listener := voice.NewListener(exclusive, voiceSetup.transcriber, voice.ListenerConfig{
		SampleRate:   cfg.AudioSampleRate,
		FrameSize:    cfg.AudioFrameSize,
		EndSilence:   cfg.CaptureEndSilence,
		MaxUtterance: cfg.CaptureMaxUtterance,
	})

	detector := wakeword.NewPhraseDetector(voiceSetup.transcriber, wakeword.Config{
		Keywords:   cfg.WakeWords,
		SampleRate: cfg.AudioSampleRate,
		FrameSize:  cfg.AudioFrameSize,
	})

	controller := assistant.New(assistant.Config{
		SampleRate: cfg.AudioSampleRate,
		FrameSize:  cfg.AudioFrameSize,
		Session: session.Config{
			AssistantName:  cfg.AssistantName,
			TurnLimit:      cfg.SessionTurnLimit,
			IdleTimeout:    cfg.SessionIdleTimeout,
			CaptureTimeout: cfg.CaptureTimeout,
			HistoryTurns:   historyTurns(cfg.SessionHistoryTurns),
			Out:            out,
		},
	}, assistant.Deps{
		Device:   exclusive,
		Detector: detector,
		Session: session.Deps{
			Listener:  listener,
			Responder: generator,
			Speaker:   synth,
			Humor:     humorStore,
			Memory:    memoryStore,
			Rand:      rng,
			Metrics:   metrics,
		},
	})

	var api *httpapi.Server
	if cfg.HTTPEnabled() {
		api = httpapi.New(cfg, controller, humorStore, metrics)
	}

	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:     cfg,
		Controller: controller,
		API:        api,
		Humor:      humorStore,
		Metrics:    metrics,
		Providers: ProviderInfo{
			Brain: adapter.Name(),
			Voice: voiceSetup.detail,
			Humor: humor.BackendKind(cfg.HumorStore),
		},
		Cleanup: cleanup,
	}, nil
}

func openAudio(cfg config.Config, opts Options) (audio.Device, audio.Player, error) {
	device, player := opts.Device, opts.Player
	if cfg.AudioBackend == "mock" {
		if device == nil {
			device = audio.NewMockDevice(nil)
		}
		if player == nil {
			player = &audio.MockPlayer{}
		}
		return device, player, nil
	}
	if device == nil {
		pa, err := audio.NewPortAudioDevice(cfg.AudioInputDevice)
		if err != nil {
			return nil, nil, fmt.Errorf("audio init failed: %w", err)
		}
		device = pa
	}
	if player == nil {
		player = audio.NewPortAudioPlayer()
	}
	return device, player, nil
}

// historyTurns maps the config value onto session.Config, where zero means
// the default and a negative value disables history.
func historyTurns(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
