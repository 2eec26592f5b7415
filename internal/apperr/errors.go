// Package apperr defines the application error taxonomy and its HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Type identifies an error kind.
type Type string

const (
	TypeValidation         Type = "validation_error"
	TypeAuth               Type = "auth_error"
	TypeAuthorization      Type = "authorization_error"
	TypeNotFound           Type = "not_found"
	TypeInvalidState       Type = "invalid_state"
	TypeGeneration         Type = "generation_error"
	TypeExternalService    Type = "external_service_error"
	TypeInvariantViolation Type = "invariant_violation"
	TypeInternal           Type = "internal_error"
)

// AppError carries a kind, a caller-safe message and the HTTP status to answer with.
type AppError struct {
	Type      Type   `json:"type"`
	Message   string `json:"message"`
	Code      int    `json:"-"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Wrap returns a copy of e that wraps cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithCode returns a copy of e answered with a different HTTP status.
func (e *AppError) WithCode(code int) *AppError {
	cp := *e
	cp.Code = code
	return &cp
}

func newErr(t Type, code int, retryable bool, format string, args ...any) *AppError {
	return &AppError{Type: t, Code: code, Retryable: retryable, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *AppError {
	return newErr(TypeValidation, http.StatusBadRequest, false, format, args...)
}

func Auth(format string, args ...any) *AppError {
	return newErr(TypeAuth, http.StatusUnauthorized, false, format, args...)
}

func Authorization(format string, args ...any) *AppError {
	return newErr(TypeAuthorization, http.StatusForbidden, false, format, args...)
}

func NotFound(format string, args ...any) *AppError {
	return newErr(TypeNotFound, http.StatusNotFound, false, format, args...)
}

func InvalidState(format string, args ...any) *AppError {
	return newErr(TypeInvalidState, http.StatusConflict, false, format, args...)
}

func Generation(format string, args ...any) *AppError {
	return newErr(TypeGeneration, http.StatusBadGateway, true, format, args...)
}

func ExternalService(format string, args ...any) *AppError {
	return newErr(TypeExternalService, http.StatusBadGateway, true, format, args...)
}

func InvariantViolation(format string, args ...any) *AppError {
	return newErr(TypeInvariantViolation, http.StatusInternalServerError, false, format, args...)
}

func Internal(format string, args ...any) *AppError {
	return newErr(TypeInternal, http.StatusInternalServerError, false, format, args...)
}

// Get extracts the first AppError in err's chain.
func Get(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is reports whether err carries an AppError of type t.
func Is(err error, t Type) bool {
	appErr := Get(err)
	return appErr != nil && appErr.Type == t
}

func IsValidation(err error) bool   { return Is(err, TypeValidation) }
func IsNotFound(err error) bool     { return Is(err, TypeNotFound) }
func IsInvalidState(err error) bool { return Is(err, TypeInvalidState) }
func IsGeneration(err error) bool   { return Is(err, TypeGeneration) }

// HTTPStatus maps any error to a status code; unknown errors are 500.
func HTTPStatus(err error) int {
	if appErr := Get(err); appErr != nil {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// IsDuplicate checks for unique-constraint violations across mysql and sqlite.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Duplicate entry") ||
		strings.Contains(s, "UNIQUE constraint failed") ||
		strings.Contains(s, "duplicate key")
}
