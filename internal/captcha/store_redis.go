package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/pkg/platform/sentinel"
)

const challengeKeyPrefix = "captcha:challenge:"

// RedisStore shares challenges across instances. Expiry is delegated to
// Redis TTLs and GETDEL makes Take atomic.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, key, answer string, ttl time.Duration) error {
	if err := s.client.Set(ctx, challengeKeyPrefix+key, answer, ttl).Err(); err != nil {
		return fmt.Errorf("save captcha challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	answer, err := s.client.GetDel(ctx, challengeKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("take captcha challenge: %w", err)
	}
	return answer, nil
}
