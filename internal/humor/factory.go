package humor

import (
	"context"
	"strings"
)

const (
	KindFile     = "file"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// BackendKind reports which backend NewBackend would pick for dsn.
func BackendKind(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return KindRedis
	default:
		return KindFile
	}
}

// NewBackend selects a backend from dsn: postgres and redis URLs map to their
// backends, anything else is treated as a file path.
func NewBackend(ctx context.Context, dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	switch BackendKind(dsn) {
	case KindPostgres:
		return NewPostgresBackend(ctx, dsn)
	case KindRedis:
		return NewRedisBackend(ctx, dsn)
	default:
		return NewFileBackend(dsn)
	}
}
