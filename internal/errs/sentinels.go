// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or belongs to another user).
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrHasDependents indicates a location still referenced by boxes.
	ErrHasDependents = errors.New("has dependents")
)

// Auth sentinels.
var (
	// ErrUnauthorized indicates a missing, invalid or revoked session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRecoveryToken indicates an unknown, used or expired recovery token.
	ErrInvalidRecoveryToken = errors.New("invalid or expired recovery token")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Invite sentinels.
var (
	// ErrInvalidOrExpiredCode indicates a code that is unknown, used, revoked or past expiry.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired invite code")

	// ErrNoInvitesRemaining indicates the creator has no invite allowance left.
	ErrNoInvitesRemaining = errors.New("no invites remaining")

	// ErrInviteNotPending indicates a revoke of an invite that is already used, revoked or expired.
	ErrInviteNotPending = errors.New("invite is not pending")
)
