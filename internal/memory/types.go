package memory

import (
	"context"
	"time"

	"github.com/ent0n29/tars/internal/policy"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRecord stores one side of a conversational turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Turn        int       `json:"turn"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves per-session conversational memory.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}

// NewRedactedTurn builds a record with PII masked out of content.
func NewRedactedTurn(sessionID string, turn int, role, content string) TurnRecord {
	redacted, changed := policy.RedactPII(content)
	return TurnRecord{
		SessionID:   sessionID,
		Turn:        turn,
		Role:        role,
		Content:     redacted,
		PIIRedacted: changed,
	}
}
