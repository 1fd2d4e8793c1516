package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps a sliding window of request timestamps per key. It is
// not shared between processes; use RedisStore for that.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string][]time.Time), now: time.Now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	timestamps := trimBefore(s.windows[key], now.Add(-window))

	if len(timestamps) >= limit {
		s.windows[key] = timestamps
		resetAt := now.Add(window)
		if len(timestamps) > 0 {
			resetAt = timestamps[0].Add(window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt.Sub(now)),
		}, nil
	}

	timestamps = append(timestamps, now)
	s.windows[key] = timestamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(timestamps),
		ResetAt:   timestamps[0].Add(window),
	}, nil
}

// trimBefore drops timestamps at or before cutoff. timestamps is sorted.
func trimBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	return timestamps[i:]
}
