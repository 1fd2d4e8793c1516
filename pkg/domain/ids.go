package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

// UserID identifies a persisted account. The zero value means the account
// has not been written to a store yet.
type UserID uuid.UUID

// NewUserID mints a fresh random identity.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID validates an external identifier at a trust boundary.
// Empty strings, malformed UUIDs and the nil UUID are rejected.
func ParseUserID(s string) (UserID, error) {
	if strings.TrimSpace(s) == "" {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user ID required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	if parsed == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user ID cannot be nil")
	}
	return UserID(parsed), nil
}

// IsNil reports whether the ID is unassigned.
func (u UserID) IsNil() bool {
	return uuid.UUID(u) == uuid.Nil
}

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// MarshalText lets UserID serialize as its canonical UUID string.
func (u UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(u).MarshalText()
}

func (u *UserID) UnmarshalText(b []byte) error {
	var parsed uuid.UUID
	if err := parsed.UnmarshalText(b); err != nil {
		return err
	}
	*u = UserID(parsed)
	return nil
}
