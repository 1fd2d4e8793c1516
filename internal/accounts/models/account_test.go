package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

func TestAccount_Activation(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("inactive account can be activated", func(t *testing.T) {
		a := &Account{ID: id.NewUserID()}
		require.NoError(t, a.CanActivate())
		a.ApplyActivation(now)
		assert.True(t, a.IsActive)
		assert.Equal(t, now, a.UpdatedAt)
	})

	t.Run("active account cannot be activated again", func(t *testing.T) {
		a := &Account{IsActive: true}
		err := a.CanActivate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestAccount_IsPersisted(t *testing.T) {
	assert.False(t, (&Account{}).IsPersisted())
	assert.True(t, (&Account{ID: id.NewUserID()}).IsPersisted())
}

func TestTakenErrorsWrapSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrUsernameTaken, sentinel.ErrAlreadyUsed))
	assert.True(t, errors.Is(ErrEmailTaken, sentinel.ErrAlreadyUsed))
	assert.False(t, errors.Is(ErrUsernameTaken, ErrEmailTaken))
}
