package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	inMemoryMaxTurnsPerSession = 64
	inMemoryMaxSessions        = 32
)

// InMemoryStore is a bounded in-process store for local use. The oldest
// session is evicted once the session cap is exceeded.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]TurnRecord
	order   []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]TurnRecord)}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, record TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, ok := s.records[record.SessionID]; !ok {
		s.order = append(s.order, record.SessionID)
		if len(s.order) > inMemoryMaxSessions {
			delete(s.records, s.order[0])
			s.order = s.order[1:]
		}
	}
	arr := append(s.records[record.SessionID], record)
	if len(arr) > inMemoryMaxTurnsPerSession {
		arr = arr[len(arr)-inMemoryMaxTurnsPerSession:]
	}
	s.records[record.SessionID] = arr
	return nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]TurnRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
