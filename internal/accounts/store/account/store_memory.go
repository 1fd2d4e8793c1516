package account

import (
	"context"
	"sort"
	"strings"
	"sync"

	"registrar/internal/accounts/models"
	id "registrar/pkg/domain"
	"registrar/pkg/email"
	"registrar/pkg/platform/sentinel"
)

// InMemoryAccountStore keeps accounts in a map guarded by an RWMutex.
// Username and email uniqueness are enforced case-insensitively, matching the
// LOWER() unique indexes of the Postgres schema.
type InMemoryAccountStore struct {
	mu         sync.RWMutex
	accounts   map[id.UserID]*models.Account
	byUsername map[string]id.UserID
	byEmail    map[string]id.UserID
}

func New() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		accounts:   make(map[id.UserID]*models.Account),
		byUsername: make(map[string]id.UserID),
		byEmail:    make(map[string]id.UserID),
	}
}

func (s *InMemoryAccountStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	username := foldUsername(account.Username)
	if _, taken := s.byUsername[username]; taken {
		return models.ErrUsernameTaken
	}
	mail := email.Fold(account.Email)
	if _, taken := s.byEmail[mail]; taken {
		return models.ErrEmailTaken
	}

	stored := *account
	s.accounts[account.ID] = &stored
	s.byUsername[username] = account.ID
	s.byEmail[mail] = account.ID
	return nil
}

// Update replaces the mutable fields of an existing account. Username and
// email are fixed after creation.
func (s *InMemoryAccountStore) Update(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.PasswordHash = account.PasswordHash
	existing.IsActive = account.IsActive
	existing.IsSuperuser = account.IsSuperuser
	existing.UpdatedAt = account.UpdatedAt
	return nil
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[userID]; ok {
		found := *a
		return &found, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryAccountStore) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byUsername, foldUsername(username))
}

func (s *InMemoryAccountStore) FindByEmail(_ context.Context, address string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byEmail, email.Fold(address))
}

func (s *InMemoryAccountStore) lookup(index map[string]id.UserID, key string) (*models.Account, error) {
	userID, ok := index[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *s.accounts[userID]
	return &found, nil
}

func (s *InMemoryAccountStore) CountSuperusers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.accounts {
		if a.IsSuperuser {
			count++
		}
	}
	return count, nil
}

// List returns accounts oldest first.
func (s *InMemoryAccountStore) List(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateJoined.Equal(out[j].DateJoined) {
			return out[i].Username < out[j].Username
		}
		return out[i].DateJoined.Before(out[j].DateJoined)
	})
	return out, nil
}

func foldUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
