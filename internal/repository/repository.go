// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to credentials and profiles.
type UserRepository interface {
	// CreateWithInvite inserts the user and its profile and consumes the invite code in one
	// transaction. The profile's InvitedBy is taken from the invite creator.
	CreateWithInvite(ctx context.Context, u *model.User, p *model.Profile, code string, now time.Time) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by case-folded email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetPassword replaces the password hash and salt.
	SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte) error
	// GetProfile loads the profile of a user.
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// UpdateProfile applies non-nil fields and refreshes updated_at.
	UpdateProfile(ctx context.Context, id uuid.UUID, upd model.ProfileUpdate, now time.Time) (*model.Profile, error)
	// CountProfiles returns the number of profiles.
	CountProfiles(ctx context.Context) (int64, error)
}

// InviteRepository persists invites. Expiry is never written; callers derive it.
type InviteRepository interface {
	// Lookup returns the stored status and expiry of a code.
	Lookup(ctx context.Context, code string) (*model.Invite, error)
	// CreateForProfile decrements the creator's invites_remaining and inserts inv in one
	// transaction. ErrNoInvitesRemaining when the allowance is exhausted, ErrAlreadyExists
	// on a code collision (nothing is written in either case).
	CreateForProfile(ctx context.Context, inv *model.Invite) error
	// CreateSystem inserts an invite with no creator.
	CreateSystem(ctx context.Context, inv *model.Invite) error
	// ListByCreator returns a creator's invites, newest first.
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Invite, error)
	// Revoke moves a creator's pending, unexpired invite to revoked.
	// ErrInviteNotPending when it is used, revoked or expired.
	Revoke(ctx context.Context, creatorID, inviteID uuid.UUID, now time.Time) (*model.Invite, error)
}

// SessionRepository persists login sessions and password recovery tokens.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *model.Session) error
	// Get loads a session by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// GetByRefreshHash loads a session by the hash of its refresh token.
	GetByRefreshHash(ctx context.Context, hash []byte) (*model.Session, error)
	// Rotate swaps the refresh hash of a live session; ErrUnauthorized if oldHash no longer matches.
	Rotate(ctx context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt, now time.Time) error
	// Revoke marks a session revoked; revoking twice is not an error.
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
	// CreateRecovery stores a password recovery token.
	CreateRecovery(ctx context.Context, t *model.RecoveryToken) error
	// ResetPassword consumes a recovery token, sets the new password and revokes every session
	// of the user in one transaction. ErrInvalidRecoveryToken if the token is unusable.
	ResetPassword(ctx context.Context, tokenHash, pwdHash, salt []byte, now time.Time) (uuid.UUID, error)
}

// LocationRepository provides user-scoped access to locations.
type LocationRepository interface {
	// List returns the user's locations, oldest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Location, error)
	// Get returns one location of the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Location, error)
	// Create inserts a location.
	Create(ctx context.Context, l *model.Location) error
	// Update applies non-nil fields.
	Update(ctx context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error)
	// Delete removes a location; ErrHasDependents if boxes still reference it.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// CountBoxes returns how many boxes reference the location.
	CountBoxes(ctx context.Context, userID, id uuid.UUID) (int, error)
}

// BoxRepository provides user-scoped access to boxes and their contents.
type BoxRepository interface {
	// List returns the user's boxes, most recently updated first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Box, error)
	// Get returns one box of the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Box, error)
	// FindByQRCode returns the user's box carrying the QR payload.
	FindByQRCode(ctx context.Context, userID uuid.UUID, code string) (*model.Box, error)
	// Save upserts the box row and replaces its contents atomically.
	Save(ctx context.Context, b *model.Box) error
	// Delete removes a box and its contents.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
