package service

import (
	"time"

	"registrar/internal/accounts/models"
)

// Build constructs the account a validated form describes. It never touches
// a store: privilege and activity follow from existingSuperusers alone, and
// the returned account has no identity.
func Build(form *models.RegistrationForm, passwordHash string, existingSuperusers int, now time.Time) *models.Account {
	account := &models.Account{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: passwordHash,
		DateJoined:   now,
		UpdatedAt:    now,
	}
	applyBootstrapRule(account, existingSuperusers)
	return account
}

// applyBootstrapRule makes the account an active superuser only when no
// superuser exists yet. Every later account starts inactive and unprivileged
// regardless of how many regular accounts exist.
func applyBootstrapRule(account *models.Account, existingSuperusers int) {
	first := existingSuperusers == 0
	account.IsSuperuser = first
	account.IsActive = first
}
