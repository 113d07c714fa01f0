package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/tars/internal/assistant"
	"github.com/ent0n29/tars/internal/config"
	"github.com/ent0n29/tars/internal/humor"
	"github.com/ent0n29/tars/internal/observability"
	"github.com/ent0n29/tars/internal/session"
)

type fakeStatus struct {
	status assistant.Status
}

func (f fakeStatus) Status() assistant.Status { return f.status }

func newHumorStore(t *testing.T) *humor.Store {
	t.Helper()
	backend, err := humor.NewFileBackend(filepath.Join(t.TempDir(), "tars_config.json"))
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	store, err := humor.NewStore(backend, humor.Default)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.Load(context.Background())
	return store
}

func newTestServer(t *testing.T, cfg config.Config, status StatusSource, store HumorStore, metrics *observability.Metrics) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(cfg, status, store, metrics).Router())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	status := &fakeStatus{status: assistant.Status{Mode: assistant.ModeIdle}}
	ts := newTestServer(t, config.Config{AssistantName: "TARS"}, status, nil, nil)

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz idle status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}

	status.status.Mode = assistant.ModeWaiting
	res, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("/readyz waiting status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestStatusEndpoint(t *testing.T) {
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	status := fakeStatus{status: assistant.Status{
		Mode:     assistant.ModeConversation,
		Sessions: 3,
		Humor:    60,
		Session: &session.State{
			ID:        "sess-1",
			TurnCount: 2,
			StartedAt: started,
			Phase:     session.PhaseThinking,
		},
	}}
	ts := newTestServer(t, config.Config{}, status, nil, nil)

	res, err := http.Get(ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status error = %v", err)
	}
	var got assistant.Status
	decodeBody(t, res, &got)
	if got.Mode != assistant.ModeConversation || got.Sessions != 3 || got.Humor != 60 {
		t.Fatalf("status = %+v", got)
	}
	if got.Session == nil || got.Session.ID != "sess-1" || got.Session.Phase != session.PhaseThinking || !got.Session.StartedAt.Equal(started) {
		t.Fatalf("session = %+v", got.Session)
	}
}

func TestHumorEndpoints(t *testing.T) {
	store := newHumorStore(t)
	metrics := observability.NewMetrics("tars_test")
	ts := newTestServer(t, config.Config{}, nil, store, metrics)

	res, err := http.Get(ts.URL + "/v1/humor")
	if err != nil {
		t.Fatalf("GET /v1/humor error = %v", err)
	}
	var body map[string]int
	decodeBody(t, res, &body)
	if body["humor"] != 75 {
		t.Fatalf("humor = %d, want 75", body["humor"])
	}

	put := func(payload string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/humor", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT /v1/humor error = %v", err)
		}
		return res
	}

	res = put(`{"humor": 30}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("PUT valid status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	decodeBody(t, res, &body)
	if body["humor"] != 30 || store.Level() != 30 {
		t.Fatalf("after PUT humor = %d, store = %d, want 30", body["humor"], store.Level())
	}

	for _, payload := range []string{`{"humor": 101}`, `{"humor": -1}`, `{}`, `{"humor": "high"}`, ``} {
		res = put(payload)
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("PUT %q status = %d, want %d", payload, res.StatusCode, http.StatusBadRequest)
		}
	}
	if store.Level() != 30 {
		t.Fatalf("invalid PUT changed level to %d", store.Level())
	}

	res, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer res.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(res.Body)
	if !strings.Contains(out.String(), "tars_test_humor_level 30") {
		t.Fatalf("/metrics missing humor gauge")
	}
}

type failingHumor struct{}

func (failingHumor) Level() int { return 75 }
func (failingHumor) Save(context.Context, int) error {
	return errors.New("disk full")
}

func TestHumorSaveFailure(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, failingHumor{}, nil)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/humor", strings.NewReader(`{"humor": 10}`))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /v1/humor error = %v", err)
	}
	var body errorResponse
	decodeBody(t, res, &body)
	if res.StatusCode != http.StatusInternalServerError || body.Code != "humor_save_failed" {
		t.Fatalf("status = %d, body = %+v", res.StatusCode, body)
	}
}

func TestPerfLatency(t *testing.T) {
	metrics := observability.NewMetrics("tars_test")
	metrics.ObserveTurnStage("generate", 1200*time.Millisecond)
	ts := newTestServer(t, config.Config{}, nil, nil, metrics)

	res, err := http.Get(ts.URL + "/v1/perf/latency?reset=1")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	var snap observability.TurnStageSnapshot
	decodeBody(t, res, &snap)
	if len(snap.Stages) == 0 {
		t.Fatalf("snapshot has no stages")
	}
	if after := metrics.TurnStageSnapshot(); len(after.Stages) != 0 {
		t.Fatalf("reset left %d stages", len(after.Stages))
	}
}

func TestSetupStatus(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	t.Cleanup(func() { lookPath = orig })

	cfg := config.Config{
		BrainProvider:    "auto",
		STTProvider:      "deepgram",
		TTSProvider:      "auto",
		ElevenLabsAPIKey: "xi-key",
		HumorStore:       "redis://localhost:6379/0",
	}
	ts := newTestServer(t, cfg, nil, nil, nil)

	res, err := http.Get(ts.URL + "/v1/setup/status")
	if err != nil {
		t.Fatalf("GET /v1/setup/status error = %v", err)
	}
	var got setupStatusResponse
	decodeBody(t, res, &got)
	if got.BrainProvider != "mock" || got.STTProvider != "deepgram" || got.TTSProvider != "elevenlabs+system" {
		t.Fatalf("providers = %q/%q/%q", got.BrainProvider, got.STTProvider, got.TTSProvider)
	}
	if got.HumorStore != "redis" || got.MemoryStore != "in-memory" {
		t.Fatalf("stores = %q/%q", got.HumorStore, got.MemoryStore)
	}
	want := map[string]string{
		"brain":      "warn",
		"stt":        "error",
		"tts":        "ok",
		"system_tts": "warn",
	}
	if len(got.Checks) != len(want) {
		t.Fatalf("checks = %+v", got.Checks)
	}
	for _, c := range got.Checks {
		if want[c.ID] != c.Status {
			t.Fatalf("check %s status = %q, want %q", c.ID, c.Status, want[c.ID])
		}
	}
}
