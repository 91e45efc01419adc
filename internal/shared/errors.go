package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrValidation marks client-side precondition failures.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork marks transport failures talking to the records API.
	ErrNetwork = errors.New("network error")
	// ErrServer marks non-2xx or malformed responses from the records API.
	ErrServer = errors.New("server error")
	// ErrUnauthorized indicates a missing or expired API token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the API rejected the caller's role.
	ErrForbidden = errors.New("forbidden")
)

// FieldError describes a validation failure for a single field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field level failures. It never reaches the network.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Fields returns the failures keyed by field name.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field] = fe.Message
	}
	return out
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any failure was collected.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// NewValidationError creates a ValidationError for one field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

// Is reports ErrNetwork so callers can match the category.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx status or an unreadable response body.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// Is matches ErrServer plus the status specific sentinels.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrServer:
		return true
	case ErrUnauthorized:
		return e.Status == 401
	case ErrForbidden:
		return e.Status == 403
	case ErrNotFound:
		return e.Status == 404
	}
	return false
}

// UserMessage picks a short text suitable for a flash notification.
func UserMessage(err error, fallback string) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) && len(vErr.Errors) > 0 {
		return vErr.Errors[0].Message
	}
	var sErr *ServerError
	if errors.As(err, &sErr) && sErr.Message != "" {
		return sErr.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "Records service is unreachable, please try again"
	}
	return fallback
}
