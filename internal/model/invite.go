package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// InviteStatus is the lifecycle status of an invite.
type InviteStatus string

const (
	InvitePending InviteStatus = "pending"
	InviteUsed    InviteStatus = "used"
	InviteRevoked InviteStatus = "revoked"
	// InviteExpired is never stored; it is derived from a pending invite past its expiry.
	InviteExpired InviteStatus = "expired"
)

// ParseInviteStatus converts a stored label to an InviteStatus.
func ParseInviteStatus(label string) (InviteStatus, bool) {
	switch s := InviteStatus(strings.ToLower(strings.TrimSpace(label))); s {
	case InvitePending, InviteUsed, InviteRevoked, InviteExpired:
		return s, true
	default:
		return "", false
	}
}

// Invite is a single-use, expiring token gating account creation.
type Invite struct {
	ID        uuid.UUID
	Code      string
	CreatedBy *uuid.UUID // nil for the bootstrap invite
	UsedBy    *uuid.UUID
	Status    InviteStatus // stored status: pending, used or revoked
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// EffectiveInviteStatus overlays expiry on the stored status at read time.
// Only a pending invite can read as expired; used and revoked are terminal.
func EffectiveInviteStatus(stored InviteStatus, expiresAt, now time.Time) InviteStatus {
	if stored == InvitePending && expiresAt.Before(now) {
		return InviteExpired
	}
	return stored
}

// InviteUsable reports whether an invite with the stored status and expiry can be consumed at now.
func InviteUsable(stored InviteStatus, expiresAt, now time.Time) bool {
	return EffectiveInviteStatus(stored, expiresAt, now) == InvitePending
}

// EffectiveStatus returns the read-time status of inv.
func (inv *Invite) EffectiveStatus(now time.Time) InviteStatus {
	return EffectiveInviteStatus(inv.Status, inv.ExpiresAt, now)
}

// InviteValidation is the result of checking a code before sign-up.
type InviteValidation struct {
	Valid   bool
	Message string
}
