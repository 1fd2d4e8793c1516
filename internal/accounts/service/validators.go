package service

import (
	"context"
	"errors"

	"github.com/asaskevich/govalidator"

	"registrar/internal/accounts/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/validation"
)

const maxUsernameLength = "150"

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// usernamePattern allows letters, digits and @/./+/-/_ in any script.
const usernamePattern = `^[\p{L}\p{N}_.@+-]+$`

// pipeline evaluates fields in form order. The CAPTCHA check runs last so
// a bad submission still reports every other field.
func (s *Service) pipeline() *validation.Pipeline[*models.RegistrationForm] {
	return validation.NewPipeline[*models.RegistrationForm](
		s.validateUsername,
		s.validateEmail,
		s.validatePasswords,
		s.validateCaptcha,
	)
}

func (s *Service) validateUsername(ctx context.Context, form *models.RegistrationForm) (validation.Errors, error) {
	switch {
	case form.Username == "":
		return validation.Errors{validation.ErrRequired.On(models.FieldUsername)}, nil
	case !govalidator.StringLength(form.Username, "1", maxUsernameLength):
		return validation.Errors{validation.ErrUsernameTooLong.On(models.FieldUsername)}, nil
	case !govalidator.Matches(form.Username, usernamePattern):
		return validation.Errors{validation.ErrInvalidUsername.On(models.FieldUsername)}, nil
	}

	_, err := s.accounts.FindByUsername(ctx, form.Username)
	if err == nil {
		return validation.Errors{validation.ErrDuplicateUsername.On(models.FieldUsername)}, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
}

func (s *Service) validateEmail(ctx context.Context, form *models.RegistrationForm) (validation.Errors, error) {
	if form.Email == "" {
		return validation.Errors{validation.ErrRequired.On(models.FieldEmail)}, nil
	}
	if !govalidator.IsEmail(form.Email) {
		return validation.Errors{validation.ErrInvalidEmail.On(models.FieldEmail)}, nil
	}

	_, err := s.accounts.FindByEmail(ctx, form.Email)
	if err == nil {
		return validation.Errors{validation.ErrDuplicateEmail.On(models.FieldEmail)}, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
}

// validatePasswords reports a missing entry on its own field. Mismatch and
// strength problems go on password2.
func (s *Service) validatePasswords(_ context.Context, form *models.RegistrationForm) (validation.Errors, error) {
	var errs validation.Errors
	if form.Password1 == "" {
		errs = append(errs, validation.ErrRequired.On(models.FieldPassword1))
	}
	if form.Password2 == "" {
		errs = append(errs, validation.ErrRequired.On(models.FieldPassword2))
	}
	if len(errs) > 0 {
		return errs, nil
	}
	if form.Password1 != form.Password2 {
		return validation.Errors{validation.ErrPasswordMismatch.On(models.FieldPassword2)}, nil
	}

	if len(form.Password2) > maxPasswordBytes {
		errs = append(errs, validation.ErrPasswordTooLong.On(models.FieldPassword2))
	}
	if len([]rune(form.Password2)) < s.settings.PasswordMinLength {
		errs = append(errs, validation.ErrPasswordTooShort.On(models.FieldPassword2))
	}
	if govalidator.IsNumeric(form.Password2) {
		errs = append(errs, validation.ErrPasswordEntirelyNumeric.On(models.FieldPassword2))
	}
	return errs, nil
}

func (s *Service) validateCaptcha(ctx context.Context, form *models.RegistrationForm) (validation.Errors, error) {
	err := s.captcha.Evaluate(ctx, s.settings.UseCaptcha, form.Captcha)
	if err == nil {
		return nil, nil
	}
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return validation.Errors{fe}, nil
	}
	return nil, err
}
