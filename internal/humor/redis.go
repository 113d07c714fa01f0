package humor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "tars:humor"

// RedisBackend keeps the level under a single key.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisBackend{client: client, key: DefaultRedisKey}, nil
}

func (b *RedisBackend) Read(ctx context.Context) (int, error) {
	raw, err := b.client.Get(ctx, b.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", b.key, err)
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrCorrupt, b.key, raw)
	}
	return level, nil
}

func (b *RedisBackend) Write(ctx context.Context, level int) error {
	if err := b.client.Set(ctx, b.key, strconv.Itoa(level), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", b.key, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
