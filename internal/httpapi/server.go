package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/tars/internal/assistant"
	"github.com/ent0n29/tars/internal/config"
	"github.com/ent0n29/tars/internal/humor"
	"github.com/ent0n29/tars/internal/observability"
)

// StatusSource reports what the assistant loop is doing.
type StatusSource interface {
	Status() assistant.Status
}

// HumorStore is the subset of humor.Store the API needs.
type HumorStore interface {
	Level() int
	Save(ctx context.Context, level int) error
}

type Server struct {
	cfg     config.Config
	status  StatusSource
	humor   HumorStore
	metrics *observability.Metrics
}

func New(cfg config.Config, status StatusSource, humorStore HumorStore, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		status:  status,
		humor:   humorStore,
		metrics: metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/humor", s.handleGetHumor)
	r.Put("/v1/humor", s.handlePutHumor)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/setup/status", s.handleSetupStatus)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"assistant": s.cfg.AssistantName,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	mode := assistant.ModeIdle
	if s.status != nil {
		mode = s.status.Status().Mode
	}
	if mode != assistant.ModeWaiting && mode != assistant.ModeConversation {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"mode":   mode,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"mode":   mode,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "assistant not running")
		return
	}
	respondJSON(w, http.StatusOK, s.status.Status())
}

type humorBody struct {
	Humor *int `json:"humor"`
}

func (s *Server) handleGetHumor(w http.ResponseWriter, _ *http.Request) {
	if s.humor == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "humor store not configured")
		return
	}
	level := s.humor.Level()
	respondJSON(w, http.StatusOK, humorBody{Humor: &level})
}

func (s *Server) handlePutHumor(w http.ResponseWriter, r *http.Request) {
	if s.humor == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "humor store not configured")
		return
	}
	var body humorBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if body.Humor == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "field humor is required")
		return
	}
	if err := s.humor.Save(r.Context(), *body.Humor); err != nil {
		if errors.Is(err, humor.ErrInvalidRange) {
			respondError(w, http.StatusBadRequest, "invalid_humor", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "humor_save_failed", err.Error())
		return
	}
	s.metrics.SetHumor(*body.Humor)
	level := s.humor.Level()
	respondJSON(w, http.StatusOK, humorBody{Humor: &level})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
