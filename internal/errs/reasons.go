package errs

import "errors"

// Domain is the ErrorInfo domain attached to errors crossing the wire.
const Domain = "binqr"

var reasons = []struct {
	reason string
	err    error
}{
	{"NOT_FOUND", ErrNotFound},
	{"ALREADY_EXISTS", ErrAlreadyExists},
	{"HAS_DEPENDENTS", ErrHasDependents},
	{"UNAUTHORIZED", ErrUnauthorized},
	{"INVALID_CREDENTIALS", ErrInvalidCredentials},
	{"INVALID_RECOVERY_TOKEN", ErrInvalidRecoveryToken},
	{"RATE_LIMITED", ErrRateLimited},
	{"INVALID_OR_EXPIRED_CODE", ErrInvalidOrExpiredCode},
	{"NO_INVITES_REMAINING", ErrNoInvitesRemaining},
	{"INVITE_NOT_PENDING", ErrInviteNotPending},
}

// Reason returns the stable wire reason for err, or "" when err has none.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "VALIDATION"
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return "PERSISTENCE"
	}
	return ""
}

// FromReason restores the sentinel for a wire reason. Validation and persistence reasons
// are rebuilt from the status message and metadata.
func FromReason(reason, message string, meta map[string]string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.err
		}
	}
	switch reason {
	case "VALIDATION":
		return &ValidationError{Field: meta["field"], Message: meta["message"]}
	case "PERSISTENCE":
		return &PersistenceError{Op: meta["op"], Err: errors.New(message)}
	}
	return nil
}
