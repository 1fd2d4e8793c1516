package captcha

import (
	"context"
	"sync"
	"time"

	"registrar/pkg/platform/sentinel"
)

type memoryEntry struct {
	answer    string
	expiresAt time.Time
}

// InMemoryStore is a process-local ChallengeStore. Expired entries are
// dropped lazily on Take and in bulk by Sweep.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *InMemoryStore) Save(_ context.Context, key, answer string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{answer: answer, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Take(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	delete(s.entries, key)
	if !s.now().Before(entry.expiresAt) {
		return "", sentinel.ErrExpired
	}
	return entry.answer, nil
}

// Run sweeps every interval until ctx is done.
func (s *InMemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes expired entries and reports how many were dropped.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}
