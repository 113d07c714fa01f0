package humor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

const (
	Min     = 0
	Max     = 100
	Default = 75
)

var (
	// ErrInvalidRange rejects levels outside [Min, Max].
	ErrInvalidRange = errors.New("humor setting must be between 0 and 100")
	// ErrNotFound means no humor level has been persisted yet.
	ErrNotFound = errors.New("humor setting not found")
	// ErrCorrupt means the persisted record could not be decoded.
	ErrCorrupt = errors.New("humor setting corrupt")
)

// Backend persists a single humor level. Write must replace the previous
// value atomically.
type Backend interface {
	Read(ctx context.Context) (int, error)
	Write(ctx context.Context, level int) error
	Close() error
}

// Store owns the process-wide humor level.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	level    int
	fallback int
}

// NewStore creates a store over backend. fallback is used when nothing is
// persisted or the persisted state is unreadable.
func NewStore(backend Backend, fallback int) (*Store, error) {
	if err := Validate(fallback); err != nil {
		return nil, fmt.Errorf("default humor: %w", err)
	}
	return &Store{backend: backend, level: fallback, fallback: fallback}, nil
}

// Validate reports ErrInvalidRange for levels outside [Min, Max].
func Validate(level int) error {
	if level < Min || level > Max {
		return fmt.Errorf("%w: got %d", ErrInvalidRange, level)
	}
	return nil
}

// Load reads the persisted level. Missing state is initialized with the
// default; corrupt or unreadable state is logged and replaced in memory by
// the default. Load never fails.
func (s *Store) Load(ctx context.Context) int {
	level, err := s.backend.Read(ctx)
	if err == nil {
		if vErr := Validate(level); vErr != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, vErr)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		level = s.fallback
		if wErr := s.backend.Write(ctx, level); wErr != nil {
			log.Printf("humor: initialize default failed: %v", wErr)
		}
	default:
		log.Printf("humor: %v; using default %d", err, s.fallback)
		level = s.fallback
	}

	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
	return level
}

// Level returns the current in-memory level.
func (s *Store) Level() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// Save validates and persists level, then updates the in-memory value. On any
// failure the in-memory value is left unchanged.
func (s *Store) Save(ctx context.Context, level int) error {
	if err := Validate(level); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Write(ctx, level); err != nil {
		return fmt.Errorf("persist humor: %w", err)
	}
	s.level = level
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
