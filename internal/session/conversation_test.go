package session

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/brain"
	"github.com/ent0n29/tars/internal/humor"
	"github.com/ent0n29/tars/internal/memory"
	"github.com/ent0n29/tars/internal/observability"
	"github.com/ent0n29/tars/internal/voice"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// scriptedListener replays transcripts. An empty entry, or running past the
// script, behaves like silence and consumes the whole timeout.
type scriptedListener struct {
	clock    *fakeClock
	script   []string
	timeouts []time.Duration
	onCall   func(call int)
}

func (l *scriptedListener) Capture(ctx context.Context, timeout time.Duration) voice.Utterance {
	call := len(l.timeouts)
	l.timeouts = append(l.timeouts, timeout)
	if l.onCall != nil {
		l.onCall(call)
	}
	if call < len(l.script) && l.script[call] != "" {
		l.clock.Advance(time.Second)
		return voice.Utterance{Text: l.script[call], CapturedAt: l.clock.Now()}
	}
	l.clock.Advance(timeout)
	return voice.Utterance{}
}

type recordingResponder struct {
	requests []brain.Request
}

func (r *recordingResponder) Generate(_ context.Context, req brain.Request) voice.Payload {
	r.requests = append(r.requests, req)
	return voice.Plain(fmt.Sprintf("reply %d", len(r.requests)))
}

type recordingSpeaker struct {
	spoken []voice.Payload
}

func (s *recordingSpeaker) Speak(_ context.Context, p voice.Payload) {
	s.spoken = append(s.spoken, p)
}

type fixedHumor int

func (h fixedHumor) Level() int { return int(h) }

type fixedRand int

func (r fixedRand) Intn(n int) int { return int(r) % n }

type harness struct {
	clock     *fakeClock
	listener  *scriptedListener
	responder *recordingResponder
	speaker   *recordingSpeaker
	out       *bytes.Buffer
}

func newHarness(script ...string) *harness {
	clock := newFakeClock()
	return &harness{
		clock:     clock,
		listener:  &scriptedListener{clock: clock, script: script},
		responder: &recordingResponder{},
		speaker:   &recordingSpeaker{},
		out:       &bytes.Buffer{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Listener:  h.listener,
		Responder: h.responder,
		Speaker:   h.speaker,
		Humor:     fixedHumor(75),
		Rand:      fixedRand(0),
		Now:       h.clock.Now,
	}
}

func (h *harness) config() Config {
	return Config{Out: h.out}
}

func TestConversationEndsAtTurnLimit(t *testing.T) {
	h := newHarness("one", "two", "three", "four", "five", "six")
	res := New(h.config(), h.deps()).Run(context.Background())

	if res.Reason != ReasonTurnLimit {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonTurnLimit)
	}
	if res.State.TurnCount != DefaultTurnLimit {
		t.Fatalf("TurnCount = %d, want %d", res.State.TurnCount, DefaultTurnLimit)
	}
	if got := len(h.listener.timeouts); got != DefaultTurnLimit {
		t.Fatalf("capture calls = %d, want %d", got, DefaultTurnLimit)
	}
	if got := len(h.responder.requests); got != DefaultTurnLimit {
		t.Fatalf("generate calls = %d, want %d", got, DefaultTurnLimit)
	}
	if got := len(h.speaker.spoken); got != DefaultTurnLimit {
		t.Fatalf("speak calls = %d, want %d", got, DefaultTurnLimit)
	}
	if res.State.Phase != PhaseEnding {
		t.Fatalf("Phase = %q, want %q", res.State.Phase, PhaseEnding)
	}
}

func TestConversationIdleTimeout(t *testing.T) {
	h := newHarness()
	res := New(h.config(), h.deps()).Run(context.Background())

	if res.Reason != ReasonIdleTimeout {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonIdleTimeout)
	}
	want := []time.Duration{5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(h.listener.timeouts, want) {
		t.Fatalf("capture timeouts = %v, want %v", h.listener.timeouts, want)
	}
	if len(h.responder.requests) != 0 || len(h.speaker.spoken) != 0 {
		t.Fatalf("idle session generated %d and spoke %d times", len(h.responder.requests), len(h.speaker.spoken))
	}
	if res.State.TurnCount != 0 {
		t.Fatalf("TurnCount = %d, want 0", res.State.TurnCount)
	}
}

func TestConversationClampsCaptureToIdleBudget(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.IdleTimeout = 10 * time.Second
	cfg.CaptureTimeout = 4 * time.Second
	New(cfg, h.deps()).Run(context.Background())

	want := []time.Duration{4 * time.Second, 4 * time.Second, 2 * time.Second}
	if !reflect.DeepEqual(h.listener.timeouts, want) {
		t.Fatalf("capture timeouts = %v, want %v", h.listener.timeouts, want)
	}
}

func TestConversationIdleWindowRestartsAfterTurn(t *testing.T) {
	h := newHarness("", "what is the gravity on Miller's planet")
	res := New(h.config(), h.deps()).Run(context.Background())

	if res.Reason != ReasonIdleTimeout {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonIdleTimeout)
	}
	if res.State.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", res.State.TurnCount)
	}
	// Silence, speech inside the second window, then two full windows after the turn.
	want := []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(h.listener.timeouts, want) {
		t.Fatalf("capture timeouts = %v, want %v", h.listener.timeouts, want)
	}
	if res.State.LastTurnAt.IsZero() {
		t.Fatalf("LastTurnAt not set after a turn")
	}
}

func TestConversationEmptyCaptureDoesNotCountAsTurn(t *testing.T) {
	h := newHarness("", "hello", "", "bye")
	res := New(h.config(), h.deps()).Run(context.Background())

	if res.Reason != ReasonExitPhrase {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonExitPhrase)
	}
	if res.State.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", res.State.TurnCount)
	}
}

func TestConversationExitPhraseFarewell(t *testing.T) {
	cases := []struct {
		name  string
		humor int
		input string
		want  string
	}{
		{name: "witty", humor: 80, input: "Thanks TARS", want: defaultFarewells[2]},
		{name: "upper case", humor: 100, input: "OK GOODBYE", want: defaultFarewells[2]},
		{name: "boundary is plain", humor: 50, input: "that's all", want: "Goodbye."},
		{name: "serious", humor: 0, input: "see you tomorrow", want: "Goodbye."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.input, "never captured")
			deps := h.deps()
			deps.Humor = fixedHumor(tc.humor)
			deps.Rand = fixedRand(2)
			res := New(h.config(), deps).Run(context.Background())

			if res.Reason != ReasonExitPhrase {
				t.Fatalf("Reason = %q, want %q", res.Reason, ReasonExitPhrase)
			}
			if len(h.responder.requests) != 0 {
				t.Fatalf("generator called %d times on exit phrase", len(h.responder.requests))
			}
			if len(h.speaker.spoken) != 1 {
				t.Fatalf("speak calls = %d, want 1", len(h.speaker.spoken))
			}
			if got := h.speaker.spoken[0].Text(); got != tc.want {
				t.Fatalf("farewell = %q, want %q", got, tc.want)
			}
			if len(h.listener.timeouts) != 1 {
				t.Fatalf("capture calls after Ending = %d, want 1", len(h.listener.timeouts))
			}
			if res.State.TurnCount != 0 {
				t.Fatalf("TurnCount = %d, want 0", res.State.TurnCount)
			}
		})
	}
}

func TestConversationFarewellIsAnnotated(t *testing.T) {
	h := newHarness("goodbye")
	deps := h.deps()
	deps.Humor = fixedHumor(90)
	deps.Rand = fixedRand(0)
	New(h.config(), deps).Run(context.Background())

	p := h.speaker.spoken[0]
	if p.Kind != voice.KindAnnotated {
		t.Fatalf("Kind = %v, want %v", p.Kind, voice.KindAnnotated)
	}
	if !strings.HasPrefix(p.Markup(), "<speak>") || !strings.Contains(p.Markup(), "I&#39;ll be here") {
		t.Fatalf("Markup() = %q", p.Markup())
	}
}

func TestConversationCancelledBeforeCapture(t *testing.T) {
	h := newHarness("hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(h.config(), h.deps()).Run(ctx)

	if res.Reason != ReasonCancelled {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonCancelled)
	}
	if len(h.listener.timeouts) != 0 {
		t.Fatalf("capture calls = %d, want 0", len(h.listener.timeouts))
	}
}

func TestConversationCancelledDuringCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness("", "hello")
	h.listener.onCall = func(int) { cancel() }
	res := New(h.config(), h.deps()).Run(ctx)

	if res.Reason != ReasonCancelled {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonCancelled)
	}
	if len(h.listener.timeouts) != 1 {
		t.Fatalf("capture calls = %d, want 1", len(h.listener.timeouts))
	}
	if len(h.responder.requests) != 0 {
		t.Fatalf("generate calls = %d, want 0", len(h.responder.requests))
	}
}

func TestConversationConsoleTranscript(t *testing.T) {
	h := newHarness("hello there", "bye")
	cfg := h.config()
	cfg.AssistantName = "CASE"
	deps := h.deps()
	deps.Humor = fixedHumor(10)
	New(cfg, deps).Run(context.Background())

	want := "You said: hello there\nCASE: reply 1\nYou said: bye\nCASE: Goodbye.\n"
	if got := h.out.String(); got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}
}

func TestConversationPassesHistoryAndRedactsMemory(t *testing.T) {
	store := memory.NewInMemoryStore()
	h := newHarness("my email is cooper@endurance.space", "what did I say")
	deps := h.deps()
	deps.Memory = store
	cfg := h.config()
	cfg.TurnLimit = 2
	conv := New(cfg, deps)
	res := conv.Run(context.Background())

	if len(h.responder.requests) != 2 {
		t.Fatalf("generate calls = %d, want 2", len(h.responder.requests))
	}
	first, second := h.responder.requests[0], h.responder.requests[1]
	if len(first.History) != 0 {
		t.Fatalf("first History = %v, want empty", first.History)
	}
	wantHistory := []string{"user: my email is [REDACTED_EMAIL]", "assistant: reply 1"}
	if !reflect.DeepEqual(second.History, wantHistory) {
		t.Fatalf("second History = %v, want %v", second.History, wantHistory)
	}
	if first.SessionID != res.State.ID || first.TurnID == "" || first.TurnID == second.TurnID {
		t.Fatalf("request ids = %q/%q/%q", first.SessionID, first.TurnID, second.TurnID)
	}
	if first.Text != "my email is cooper@endurance.space" {
		t.Fatalf("generator received redacted text %q", first.Text)
	}
	if first.Humor != 75 {
		t.Fatalf("Humor = %d, want 75", first.Humor)
	}

	records, err := store.RecentTurns(context.Background(), conv.ID(), 0)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("stored records = %d, want 4", len(records))
	}
	if !records[0].PIIRedacted || records[0].Turn != 0 || records[3].Turn != 1 {
		t.Fatalf("records = %+v", records)
	}
}

func TestConversationReportsPhases(t *testing.T) {
	h := newHarness("hello", "goodbye")
	deps := h.deps()
	var phases []Phase
	deps.Observer = func(s State) { phases = append(phases, s.Phase) }
	New(h.config(), deps).Run(context.Background())

	want := []Phase{
		PhaseListening, PhaseThinking, PhaseSpeaking,
		PhaseListening, PhaseThinking, PhaseEnding,
	}
	if !reflect.DeepEqual(phases, want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
}

func TestConversationRecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics("tars_test")
	h := newHarness("one", "two", "see you")
	deps := h.deps()
	deps.Metrics = metrics
	New(h.config(), deps).Run(context.Background())

	if got := testutil.ToFloat64(metrics.Turns); got != 2 {
		t.Fatalf("turns = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.SessionEnds.WithLabelValues(string(ReasonExitPhrase))); got != 1 {
		t.Fatalf("exit_phrase ends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != 0 {
		t.Fatalf("active sessions = %v, want 0", got)
	}
	snap := metrics.TurnStageSnapshot()
	if len(snap.Stages) == 0 {
		t.Fatalf("no turn stages recorded")
	}
}

func TestConversationHumorCommandChangesFarewell(t *testing.T) {
	backend, err := humor.NewFileBackend(filepath.Join(t.TempDir(), "tars_config.json"))
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	store, err := humor.NewStore(backend, humor.Default)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.Load(context.Background())

	h := newHarness("set humor to 20%", "goodbye")
	deps := h.deps()
	deps.Humor = store
	deps.Responder = brain.NewGenerator(brain.NewMockAdapter(), store, fixedRand(0), brain.GeneratorConfig{}, nil)
	res := New(h.config(), deps).Run(context.Background())

	if res.Reason != ReasonExitPhrase || res.State.TurnCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	if store.Level() != 20 {
		t.Fatalf("Level() = %d, want 20", store.Level())
	}
	if got := h.speaker.spoken[0].Text(); got != "Humor setting adjusted to 20%." {
		t.Fatalf("confirmation = %q", got)
	}
	if got := h.speaker.spoken[1].Text(); got != "Goodbye." {
		t.Fatalf("farewell = %q, want Goodbye.", got)
	}
}

type unpluggedMic struct {
	opens atomic.Int32
}

func (m *unpluggedMic) Open(int, int) (audio.Stream, error) {
	m.opens.Add(1)
	return nil, fmt.Errorf("device unplugged")
}

func (m *unpluggedMic) Close() error { return nil }

func TestConversationIdlesOutOnBrokenMicrophone(t *testing.T) {
	mic := &unpluggedMic{}
	listener := voice.NewListener(audio.NewExclusiveDevice(mic), voice.NewMockTranscriber("hello"), voice.ListenerConfig{})
	h := newHarness()
	deps := h.deps()
	deps.Listener = listener
	deps.Now = nil
	cfg := h.config()
	cfg.IdleTimeout = 300 * time.Millisecond
	cfg.CaptureTimeout = 100 * time.Millisecond

	res := New(cfg, deps).Run(context.Background())
	if res.Reason != ReasonIdleTimeout {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonIdleTimeout)
	}
	if got := mic.opens.Load(); got < 1 || got > 4 {
		t.Fatalf("open attempts = %d, want one per capture window", got)
	}
	if len(h.responder.requests) != 0 {
		t.Fatalf("generate calls = %d, want 0", len(h.responder.requests))
	}
}
