package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated indicates the action needs a session that is absent or rejected.
	ErrUnauthenticated = errors.New("blog: unauthenticated")
	// ErrValidationFailed indicates the payload was rejected, usually with field messages.
	ErrValidationFailed = errors.New("blog: validation failed")
	// ErrTransportFailure indicates a network or server error without field data.
	ErrTransportFailure = errors.New("blog: transport failure")
	// ErrNotFound indicates the slug no longer exists remotely.
	ErrNotFound = errors.New("blog: not found")
	// ErrMutationInFlight indicates a mutation on the same article is still outstanding.
	ErrMutationInFlight = errors.New("blog: mutation already in flight")
)

// ValidationError carries per-field messages from the form rules or the server.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Field returns the joined messages for one field.
func (e *ValidationError) Field(name string) string {
	return strings.Join(e.Fields[name], ", ")
}

// APIError describes a failed HTTP exchange with the platform.
type APIError struct {
	Kind       error
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s %s: API returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s %s: API returned %d", e.Method, e.Path, e.StatusCode)
	}
}

// Is matches the error kind.
func (e *APIError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// FieldErrors extracts per-field messages from err when it is a validation failure.
func FieldErrors(err error) map[string][]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
