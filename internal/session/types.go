package session

import (
	"context"
	"time"

	"github.com/ent0n29/tars/internal/brain"
	"github.com/ent0n29/tars/internal/voice"
)

type Phase string

const (
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseSpeaking  Phase = "speaking"
	PhaseEnding    Phase = "ending"
)

// Reason explains why a session reached Ending.
type Reason string

const (
	ReasonTurnLimit   Reason = "turn_limit"
	ReasonIdleTimeout Reason = "idle_timeout"
	ReasonExitPhrase  Reason = "exit_phrase"
	ReasonCancelled   Reason = "cancelled"
)

// State is the session's own view of the conversation. Copies handed to
// observers are snapshots.
type State struct {
	ID         string    `json:"session_id"`
	TurnCount  int       `json:"turn_count"`
	StartedAt  time.Time `json:"started_at"`
	LastTurnAt time.Time `json:"last_turn_at,omitempty"`
	Phase      Phase     `json:"phase"`
}

type Result struct {
	State  State  `json:"state"`
	Reason Reason `json:"reason"`
}

// Responder produces the assistant's reply for one utterance.
type Responder interface {
	Generate(ctx context.Context, req brain.Request) voice.Payload
}

// Speaker outputs a payload and never fails.
type Speaker interface {
	Speak(ctx context.Context, p voice.Payload)
}

// HumorReader exposes the current humor level.
type HumorReader interface {
	Level() int
}

type Rand interface {
	Intn(n int) int
}

// Observer receives a state snapshot on every phase change.
type Observer func(State)
