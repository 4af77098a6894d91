package users

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input
	ErrValidation = errors.New("validation error")
	// ErrAuthentication marks credentials rejected by the identity authority
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotFound marks an account unknown to the store and the authority
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a durable or cache store failure
	ErrStorage = errors.New("storage error")
	// ErrAuthorityUnavailable marks an unreachable or timed out identity authority
	ErrAuthorityUnavailable = errors.New("identity authority unavailable")
)

// Error is a classified service error. errors.Is matches both the Kind
// sentinel and the underlying cause.
type Error struct {
	Kind    error
	Op      string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationFailed reports a missing or malformed field
func ValidationFailed(field, message string) *Error {
	return &Error{
		Kind:    ErrValidation,
		Op:      "validate",
		Message: message,
		Field:   field,
	}
}

// AuthenticationFailed reports rejected credentials
func AuthenticationFailed(name string, err error) *Error {
	return &Error{
		Kind:    ErrAuthentication,
		Op:      "authenticate",
		Message: fmt.Sprintf("authentication failed for %s", name),
		Err:     err,
	}
}

// NotFound reports an account that cannot be resolved anywhere
func NotFound(account string, err error) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Op:      "lookup",
		Message: fmt.Sprintf("user not found: %s", account),
		Err:     err,
	}
}

// StorageFailed reports a store operation failure
func StorageFailed(op string, err error) *Error {
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

// AuthorityUnavailable reports an identity authority transport failure
func AuthorityUnavailable(op string, err error) *Error {
	return &Error{Kind: ErrAuthorityUnavailable, Op: op, Err: err}
}
