package captcha

import (
	"context"
	"time"
)

// ChallengeStore keeps expected answers keyed by challenge token.
//
// Take is single-use: it removes the entry and returns its answer,
// sentinel.ErrExpired when the TTL elapsed, or sentinel.ErrNotFound when the
// key is unknown or already taken. Stores relying on native expiry may report
// expired keys as not found.
type ChallengeStore interface {
	Save(ctx context.Context, key, answer string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, error)
}
