// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// Identity is the authenticated principal as seen by clients.
type Identity struct {
	ID       uuid.UUID
	Email    string
	Metadata map[string]any
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID      // PK
	Email     string         // unique, case-folded
	PwdHash   []byte         // Argon2id(password, Salt)
	Salt      []byte         // per-user salt
	Metadata  map[string]any // e.g. full_name supplied at sign-up
	CreatedAt time.Time
}

// Identity returns the client-facing view of u.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Metadata: u.Metadata}
}

// Profile is the application-level user record, one per User.
type Profile struct {
	ID               uuid.UUID
	Email            string
	FullName         string
	AvatarURL        string
	InviteCode       string     // code consumed to create this profile
	InvitedBy        *uuid.UUID // creator of that code; nil for bootstrap accounts
	InvitesRemaining int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	FullName  *string
	AvatarURL *string
}

// Session is a server-side login session backing a refresh token.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RefreshHash []byte
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// RecoveryToken is a single-use password reset token (hash only).
type RecoveryToken struct {
	TokenHash []byte
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthEventType enumerates backend auth notifications.
type AuthEventType int

const (
	AuthSignedIn AuthEventType = iota + 1
	AuthSignedOut
	AuthTokenRefreshed
)

func (t AuthEventType) String() string {
	switch t {
	case AuthSignedIn:
		return "SIGNED_IN"
	case AuthSignedOut:
		return "SIGNED_OUT"
	case AuthTokenRefreshed:
		return "TOKEN_REFRESHED"
	default:
		return "UNKNOWN"
	}
}

// AuthEvent is pushed to subscribers when the authenticated identity changes.
// Identity is nil after a sign-out.
type AuthEvent struct {
	Type     AuthEventType
	Identity *Identity
}
