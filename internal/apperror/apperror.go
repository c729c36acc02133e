// Package apperror defines the error kinds shared by every layer.
//
// Stores, services and handlers all speak the same small vocabulary of
// sentinel errors. Handlers never inspect driver errors; they ask KindOf(err)
// and decide how to render (JSON status, or flash message + redirect).
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage failure")
)

// Kind is the tag a boundary layer switches on.
type Kind string

const (
	KindValidation     Kind = "Validation"
	KindNotFound       Kind = "NotFound"
	KindConflict       Kind = "Conflict"
	KindStorageFailure Kind = "StorageFailure"
	KindForbidden      Kind = "Forbidden"
	KindUnauthorized   Kind = "Unauthorized"
	KindInternal       Kind = "Internal"
)

// FieldViolation is one failed rule on one submitted field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err        error            // sentinel kind
	Message    string           // Human-readable error message
	Field      string           // Optional: field causing the error
	Violations []FieldViolation // Optional: every failed field for validation errors
	Cause      error            // Optional: underlying driver/library error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Field:      field,
		Violations: []FieldViolation{{Field: field, Message: message}},
	}
}

// Invalid collects several field violations into one validation error.
// The message lists every violation so it is still useful when logged.
func Invalid(violations []FieldViolation) *AppError {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	e := &AppError{
		Err:        ErrValidation,
		Message:    "validation failed: " + strings.Join(parts, "; "),
		Violations: violations,
	}
	if len(violations) == 1 {
		e.Field = violations[0].Field
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Storage wraps a failed store call. op names the operation, e.g.
// "sqlite: creating user", and prefixes the cause's text.
func Storage(op string, cause error) *AppError {
	msg := op + ": " + ErrStorage.Error()
	if cause != nil {
		msg = op + ": " + cause.Error()
	}
	return &AppError{
		Err:     ErrStorage,
		Message: msg,
		Cause:   cause,
	}
}

// KindOf classifies any error. Errors that carry no known sentinel are Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStorage):
		return KindStorageFailure
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
