package errs

import (
	"errors"
	"fmt"
)

// Kind groups errors into the categories surfaced to callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindInvite
	KindPersistence
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindInvite:
		return "invite"
	case KindPersistence:
		return "persistence"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// PersistenceError hides a backend-specific failure behind a single opaque type.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Op == "" {
		return "persistence failure"
	}
	return "persistence failure: " + e.Op
}

// Unwrap exposes the cause for logging; callers should match on the type, not the cause.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it is nil or already classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Invalid is a shorthand for &ValidationError{Field: field, Message: msg}.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// KindOf classifies err. Wrapped errors are inspected with errors.Is/As.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *PersistenceError
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &pe):
		return KindPersistence
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRecoveryToken),
		errors.Is(err, ErrRateLimited):
		return KindAuth
	case errors.Is(err, ErrInvalidOrExpiredCode),
		errors.Is(err, ErrNoInvitesRemaining),
		errors.Is(err, ErrInviteNotPending):
		return KindInvite
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrHasDependents):
		return KindConflict
	default:
		return KindUnknown
	}
}
