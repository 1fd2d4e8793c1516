// Package validation runs an ordered pipeline of field validators and
// collects every field-tagged failure before a decision is made.
package validation

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Sentinel field errors. FieldError.Is matches on Code, so
// errors.Is(err, ErrRequired) holds for any required-field failure.
var (
	ErrRequired                = &FieldError{Code: "required", Message: "This field is required."}
	ErrInvalidCaptcha          = &FieldError{Code: "invalid_captcha", Message: "Invalid CAPTCHA"}
	ErrPasswordMismatch        = &FieldError{Code: "password_mismatch", Message: "The two password fields didn't match."}
	ErrDuplicateUsername       = &FieldError{Code: "duplicate_username", Message: "A user with that username already exists."}
	ErrDuplicateEmail          = &FieldError{Code: "duplicate_email", Message: "A user with that email already exists."}
	ErrInvalidUsername         = &FieldError{Code: "invalid_username", Message: "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."}
	ErrUsernameTooLong         = &FieldError{Code: "username_too_long", Message: "Ensure this value has at most 150 characters."}
	ErrInvalidEmail            = &FieldError{Code: "invalid_email", Message: "Enter a valid email address."}
	ErrPasswordTooShort        = &FieldError{Code: "password_too_short", Message: "This password is too short."}
	ErrPasswordEntirelyNumeric = &FieldError{Code: "password_entirely_numeric", Message: "This password is entirely numeric."}
	ErrPasswordTooLong         = &FieldError{Code: "password_too_long", Message: "Ensure this password has at most 72 bytes."}
)

// FieldError is a validation failure attached to a single input field.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is matches sentinel errors by code, ignoring the field.
func (e *FieldError) Is(target error) bool {
	t, ok := target.(*FieldError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// On returns a copy of the error bound to field.
func (e *FieldError) On(field string) *FieldError {
	return &FieldError{Field: field, Code: e.Code, Message: e.Message}
}

// Errors is an ordered collection of field errors. A nil or empty collection
// means the input passed.
type Errors []*FieldError

func (es Errors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is reports whether any collected error matches target.
func (es Errors) Is(target error) bool {
	for _, e := range es {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

// Has reports whether field carries at least one error.
func (es Errors) Has(field string) bool {
	for _, e := range es {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Messages returns the field's distinct messages in collection order.
func (es Errors) Messages(field string) []string {
	var msgs []string
	seen := make(map[string]struct{})
	for _, e := range es {
		if e.Field != field {
			continue
		}
		if _, dup := seen[e.Message]; dup {
			continue
		}
		seen[e.Message] = struct{}{}
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Fields groups messages by field name.
func (es Errors) Fields() map[string][]string {
	out := make(map[string][]string)
	for _, name := range es.fieldNames() {
		out[name] = es.Messages(name)
	}
	return out
}

func (es Errors) fieldNames() []string {
	seen := make(map[string]struct{}, len(es))
	names := make([]string, 0, len(es))
	for _, e := range es {
		if _, ok := seen[e.Field]; ok {
			continue
		}
		seen[e.Field] = struct{}{}
		names = append(names, e.Field)
	}
	sort.Strings(names)
	return names
}

// AsErrors extracts a collected Errors value from err.
func AsErrors(err error) (Errors, bool) {
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return Errors{fe}, true
	}
	return nil, false
}

// Validator inspects input and reports zero or more field errors. A non-nil
// error return aborts the pipeline (infrastructure failure, not bad input).
type Validator[T any] func(ctx context.Context, input T) (Errors, error)

// Pipeline runs validators in order and collects all field errors.
type Pipeline[T any] struct {
	validators []Validator[T]
}

// NewPipeline builds a pipeline from validators in evaluation order.
func NewPipeline[T any](validators ...Validator[T]) *Pipeline[T] {
	return &Pipeline[T]{validators: validators}
}

// Then appends a validator and returns the pipeline for chaining.
func (p *Pipeline[T]) Then(v Validator[T]) *Pipeline[T] {
	p.validators = append(p.validators, v)
	return p
}

// Run evaluates every validator. It returns Errors when any field failed,
// nil when the input passed, or the first infrastructure error.
func (p *Pipeline[T]) Run(ctx context.Context, input T) error {
	var collected Errors
	for _, v := range p.validators {
		errs, err := v(ctx, input)
		if err != nil {
			return err
		}
		collected = append(collected, errs...)
	}
	if len(collected) == 0 {
		return nil
	}
	return collected
}
