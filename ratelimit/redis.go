package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore coordinates windows across instances via INCR + EXPIRE. Redis
// evicts expired keys itself, so no sweep is needed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements WindowStore.
func (s *RedisStore) Incr(key string, winLen time.Duration) (int, time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	rkey := redisKeyPrefix + key
	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, rkey, winLen).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return int(count), time.Now().Add(winLen), nil
	}

	ttl, err := s.client.PTTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		// Key without TTL (e.g. EXPIRE failed earlier): repair it.
		_ = s.client.Expire(ctx, rkey, winLen).Err()
		ttl = winLen
	}
	return int(count), time.Now().Add(ttl), nil
}

// Reset implements WindowStore.
func (s *RedisStore) Reset(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
