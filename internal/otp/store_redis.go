package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:challenge:"

// RedisStore persists challenges in Redis with native TTLs, so live
// challenges survive process restarts and expiry needs no sweeping.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error {
	encoded, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Until(ch.ExpiresAt)
	}
	if err := s.client.Set(ctx, s.key(key), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Challenge, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, fmt.Errorf("redis unavailable: %w", err)
	}

	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return Challenge{}, false, err
	}
	return ch, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires challenge keys natively.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) error {
	return nil
}
