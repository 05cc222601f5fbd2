package service

import (
	"context"
	"errors"
	"strings"

	pkgcrypto "github.com/and161185/binqr/internal/crypto"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Messages returned by Validate.
const (
	MsgInviteValid   = "Valid invite code"
	MsgInviteInvalid = "Invalid or expired invite code"
	MsgInviteError   = "Error validating invite code"
)

// codeAttempts bounds retries after a code collision.
const codeAttempts = 5

// InviteService defines the invite ledger.
type InviteService interface {
	// Validate checks a code before sign-up. It never fails; problems read as invalid.
	Validate(ctx context.Context, code string) model.InviteValidation
	// Create spends one invite of the creator and returns the new pending invite.
	Create(ctx context.Context, creatorID uuid.UUID) (*model.Invite, error)
	// List returns the creator's invites, newest first, with read-time status.
	List(ctx context.Context, creatorID uuid.UUID) ([]model.Invite, error)
	// Revoke cancels a pending, unexpired invite of the creator.
	Revoke(ctx context.Context, creatorID, inviteID uuid.UUID) (*model.Invite, error)
	// Bootstrap seeds a creator-less invite when no profile exists yet.
	Bootstrap(ctx context.Context, code string) (*model.Invite, bool, error)
}

type InviteServiceImpl struct {
	invites repository.InviteRepository
	users   repository.UserRepository
	opts    options
}

// NewInviteService constructs InviteService.
func NewInviteService(invites repository.InviteRepository, users repository.UserRepository, opts ...Option) *InviteServiceImpl {
	return &InviteServiceImpl{invites: invites, users: users, opts: buildOptions(opts)}
}

// Validate looks the code up and derives its status at the current time.
func (s *InviteServiceImpl) Validate(ctx context.Context, code string) model.InviteValidation {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.InviteValidation{Valid: false, Message: MsgInviteInvalid}
	}
	inv, err := s.invites.Lookup(ctx, code)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.InviteValidation{Valid: false, Message: MsgInviteInvalid}
	case err != nil:
		s.opts.log.Warn("invite validation failed", zap.Error(err))
		return model.InviteValidation{Valid: false, Message: MsgInviteError}
	case !model.InviteUsable(inv.Status, inv.ExpiresAt, s.opts.now()):
		return model.InviteValidation{Valid: false, Message: MsgInviteInvalid}
	default:
		return model.InviteValidation{Valid: true, Message: MsgInviteValid}
	}
}

func (s *InviteServiceImpl) newInvite(creator *uuid.UUID, code string) (*model.Invite, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	if code == "" {
		if code, err = pkgcrypto.RandString(InviteCodeLength, pkgcrypto.CodeAlphabet); err != nil {
			return nil, err
		}
	}
	now := s.opts.now()
	return &model.Invite{
		ID:        id,
		Code:      code,
		CreatedBy: creator,
		Status:    model.InvitePending,
		ExpiresAt: now.Add(s.opts.inviteTTL),
		CreatedAt: now,
	}, nil
}

// Create draws a fresh code until one is unique. The allowance check and decrement
// happen in the same transaction as the insert.
func (s *InviteServiceImpl) Create(ctx context.Context, creatorID uuid.UUID) (*model.Invite, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		inv, err := s.newInvite(&creatorID, "")
		if err != nil {
			return nil, err
		}
		err = s.invites.CreateForProfile(ctx, inv)
		if errors.Is(err, errs.ErrAlreadyExists) {
			s.opts.log.Debug("invite code collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, errs.Persistence("create invite", err)
		}
		return inv, nil
	}
	return nil, errs.Persistence("create invite", errors.New("could not draw a unique code"))
}

// List overlays the expired status at read time.
func (s *InviteServiceImpl) List(ctx context.Context, creatorID uuid.UUID) ([]model.Invite, error) {
	list, err := s.invites.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, errs.Persistence("list invites", err)
	}
	now := s.opts.now()
	out := make([]model.Invite, 0, len(list))
	for _, inv := range list {
		inv.Status = inv.EffectiveStatus(now)
		out = append(out, inv)
	}
	return out, nil
}

// Revoke cancels the invite. Used, revoked and expired invites yield ErrInviteNotPending.
func (s *InviteServiceImpl) Revoke(ctx context.Context, creatorID, inviteID uuid.UUID) (*model.Invite, error) {
	inv, err := s.invites.Revoke(ctx, creatorID, inviteID, s.opts.now())
	if err != nil {
		return nil, errs.Persistence("revoke invite", err)
	}
	return inv, nil
}

// Bootstrap creates a system invite with code (random when empty) if there are no
// profiles yet. It reports false when nothing was seeded.
func (s *InviteServiceImpl) Bootstrap(ctx context.Context, code string) (*model.Invite, bool, error) {
	n, err := s.users.CountProfiles(ctx)
	if err != nil {
		return nil, false, errs.Persistence("count profiles", err)
	}
	if n > 0 {
		return nil, false, nil
	}
	inv, err := s.newInvite(nil, strings.TrimSpace(code))
	if err != nil {
		return nil, false, err
	}
	err = s.invites.CreateSystem(ctx, inv)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Persistence("create bootstrap invite", err)
	}
	return inv, true, nil
}
