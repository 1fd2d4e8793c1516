package service

import (
	"context"

	"registrar/internal/accounts/models"
	"registrar/internal/captcha"
	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
)

// AccountStore persists accounts. Implementations return sentinel.ErrNotFound
// for missing rows and models.ErrUsernameTaken / models.ErrEmailTaken on
// unique-value collisions.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	CountSuperusers(ctx context.Context) (int, error)
	List(ctx context.Context) ([]*models.Account, error)
}

// StoreTx provides the mutual-exclusion scope around count-then-insert.
// Implementations may wrap a database transaction or, in-memory, a coarse
// lock. Store calls inside fn must use the ctx passed to fn.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CaptchaGate decides whether a submitted challenge passes.
type CaptchaGate interface {
	Evaluate(ctx context.Context, enabled bool, challenge captcha.Challenge) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
