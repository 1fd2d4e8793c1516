package models

import (
	"fmt"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Stores report unique-value collisions with these, so the service can map
// a lost insert race back onto the right form field.
var (
	ErrUsernameTaken = fmt.Errorf("username: %w", sentinel.ErrAlreadyUsed)
	ErrEmailTaken    = fmt.Errorf("email: %w", sentinel.ErrAlreadyUsed)
)

// Account is a registered user.
//
// Invariants:
//   - ID is the nil UUID until the account is persisted, and never changes after
//   - IsSuperuser and IsActive are decided once, at persistence, by the
//     first-account rule; only administrative activation flips IsActive later
//   - PasswordHash never holds a plaintext password
type Account struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	IsActive     bool
	DateJoined   time.Time
	UpdatedAt    time.Time
}

// IsPersisted reports whether the account has been written to a store.
func (a *Account) IsPersisted() bool {
	return !a.ID.IsNil()
}

// CanActivate checks the inactive → active transition.
func (a *Account) CanActivate() error {
	if a.IsActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is already active")
	}
	return nil
}

// ApplyActivation marks the account active. Call CanActivate first.
func (a *Account) ApplyActivation(now time.Time) {
	a.IsActive = true
	a.UpdatedAt = now
}
