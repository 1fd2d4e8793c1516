package models

import (
	"time"

	"registrar/internal/captcha"
)

// RegisterRequest is the JSON form of a registration submission.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password1       string `json:"password1"`
	Password2       string `json:"password2"`
	CaptchaKey      string `json:"captcha_0,omitempty"`
	CaptchaResponse string `json:"captcha_1,omitempty"`
}

func (r *RegisterRequest) ToForm() *RegistrationForm {
	return &RegistrationForm{
		Username:  r.Username,
		Email:     r.Email,
		Password1: r.Password1,
		Password2: r.Password2,
		Captcha:   captcha.Challenge{Key: r.CaptchaKey, Response: r.CaptchaResponse},
	}
}

// AccountResponse is the public view of an account. ID is omitted while the
// account has not been persisted.
type AccountResponse struct {
	ID          string    `json:"id,omitempty"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	Persisted   bool      `json:"persisted"`
	DateJoined  time.Time `json:"date_joined"`
}

func NewAccountResponse(a *Account) *AccountResponse {
	resp := &AccountResponse{
		Username:    a.Username,
		Email:       a.Email,
		IsSuperuser: a.IsSuperuser,
		IsActive:    a.IsActive,
		Persisted:   a.IsPersisted(),
		DateJoined:  a.DateJoined,
	}
	if resp.Persisted {
		resp.ID = a.ID.String()
	}
	return resp
}

// AccountListResponse wraps an admin listing.
type AccountListResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int                `json:"total"`
}
