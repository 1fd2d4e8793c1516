package models

import (
	"strings"

	"registrar/internal/captcha"
	"registrar/pkg/email"
)

// Field names as submitted by clients and as keyed in error responses.
const (
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldPassword1 = "password1"
	FieldPassword2 = "password2"
	FieldCaptcha   = captcha.Field
	// FieldCaptchaKey and FieldCaptchaResponse are the two halves of the
	// CAPTCHA widget.
	FieldCaptchaKey      = "captcha_0"
	FieldCaptchaResponse = "captcha_1"
)

// RegistrationForm is the raw input of a self-service sign-up. Password1 and
// Password2 are the password entered twice.
type RegistrationForm struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
	Captcha   captcha.Challenge
}

// FormFromValues reads a field-data mapping such as url.Values. Absent
// fields are left empty.
func FormFromValues(values map[string][]string) *RegistrationForm {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return &RegistrationForm{
		Username:  get(FieldUsername),
		Email:     get(FieldEmail),
		Password1: get(FieldPassword1),
		Password2: get(FieldPassword2),
		Captcha: captcha.Challenge{
			Key:      get(FieldCaptchaKey),
			Response: get(FieldCaptchaResponse),
		},
	}
}

// Normalize trims the username and normalizes the email. Passwords are
// taken verbatim.
func (f *RegistrationForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = email.Normalize(f.Email)
}
