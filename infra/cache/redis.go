package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ StatusStore = (*RedisStore)(nil)

// RedisStore keeps snapshots in Redis so every instance behind a load
// balancer serves the same catch-up state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis at url and verifies the connection
// before returning. A non-positive ttl falls back to the default hour.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) CacheStatus(ctx context.Context, taskID string, snapshot []byte) error {
	if err := s.client.Set(ctx, statusKey(taskID), snapshot, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", taskID, err)
	}
	return nil
}

func (s *RedisStore) GetStatus(ctx context.Context, taskID string) ([]byte, error) {
	val, err := s.client.Get(ctx, statusKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", taskID, err)
	}
	return val, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
