// Package service contains application services for accounts, invites and storage records.
package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	pkgcrypto "github.com/and161185/binqr/internal/crypto"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/limiter"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/repository"
	"github.com/and161185/binqr/internal/token"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// refreshTokenBytes is the entropy of refresh and recovery tokens.
const refreshTokenBytes = 32

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email      string
	Password   string
	Confirm    string
	FullName   string
	InviteCode string
}

// Principal is the verified caller of a request.
type Principal struct {
	Identity  model.Identity
	SessionID uuid.UUID
}

// AuthService defines account and session operations.
type AuthService interface {
	// SignUp creates a user and profile and consumes the invite code atomically.
	SignUp(ctx context.Context, in SignUpInput) (*model.Profile, error)
	// SignIn applies rate limiting, verifies the password and opens a session.
	SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.Identity, error)
	// Refresh redeems a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, model.Identity, error)
	// SignOut revokes a session.
	SignOut(ctx context.Context, sessionID uuid.UUID) error
	// Authenticate verifies an access token against its live session.
	Authenticate(ctx context.Context, accessToken string) (Principal, error)
	// Profile returns the profile of a user.
	Profile(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	// UpdateProfile changes full name and avatar.
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) (*model.Profile, error)
	// RequestPasswordReset mails a recovery token; unknown emails are silently ignored.
	RequestPasswordReset(ctx context.Context, email string) error
	// ResetPassword redeems a recovery token and signs the user out everywhere.
	ResetPassword(ctx context.Context, recoveryToken, password, confirm string) error
	// UpdatePassword sets a new password for a signed-in user.
	UpdatePassword(ctx context.Context, userID uuid.UUID, password, confirm string) error
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *token.Manager
	lim      limiter.Limiter
	opts     options
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *token.Manager,
	lim limiter.Limiter,
	opts ...Option,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{users: users, sessions: sessions, tokens: tokens, lim: lim, opts: buildOptions(opts)}
}

// NormalizeEmail trims and case-folds an address and checks that it parses as a bare address.
func NormalizeEmail(email string) (string, error) {
	// a Caser is stateful, so one is built per call
	e := cases.Fold().String(strings.TrimSpace(email))
	if e == "" {
		return "", errs.Invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", errs.Invalid("email", "email is not a valid address")
	}
	return e, nil
}

func checkPassword(password, confirm string) error {
	if len([]rune(password)) < MinPasswordLength {
		return errs.Invalid("password", "password must be at least 6 characters")
	}
	if password != confirm {
		return errs.Invalid("confirm", "passwords do not match")
	}
	return nil
}

// SignUp validates the form, then creates the account in a single transaction with the
// invite consumption. A failed consumption leaves no account behind.
func (s *AuthServiceImpl) SignUp(ctx context.Context, in SignUpInput) (*model.Profile, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password, in.Confirm); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.InviteCode)
	if code == "" {
		return nil, errs.Invalid("invite_code", "invite code is required")
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(in.Password)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(in.FullName)
	meta := map[string]any{}
	if fullName != "" {
		meta["full_name"] = fullName
	}

	u := &model.User{ID: uid, Email: email, PwdHash: hash, Salt: salt, Metadata: meta}
	p := &model.Profile{FullName: fullName, InvitesRemaining: s.opts.initialInvites}
	now := s.opts.now()
	if err := s.users.CreateWithInvite(ctx, u, p, code, now); err != nil {
		return nil, errs.Persistence("create account", err)
	}
	s.opts.log.Info("account created", zap.String("user_id", uid.String()), zap.Bool("invited_by_profile", p.InvitedBy != nil))
	return p, nil
}

// SignIn authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.Identity, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return model.Tokens{}, model.Identity{}, errs.ErrInvalidCredentials
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.Identity{}, errs.Persistence("login limiter", err)
	}
	if !allowed {
		return model.Tokens{}, model.Identity{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.Identity{}, errs.Persistence("get user", err)
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.Salt, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.Identity{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, model.Identity{}, errs.ErrInvalidCredentials
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tokens, err := s.openSession(ctx, u)
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	return tokens, u.Identity(), nil
}

func (s *AuthServiceImpl) openSession(ctx context.Context, u *model.User) (model.Tokens, error) {
	sid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, err := pkgcrypto.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.opts.now()
	sess := &model.Session{
		ID:          sid,
		UserID:      u.ID,
		RefreshHash: pkgcrypto.HashToken(refresh),
		ExpiresAt:   now.Add(s.opts.refreshTTL),
		CreatedAt:   now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return model.Tokens{}, errs.Persistence("create session", err)
	}
	access, exp, err := s.tokens.Issue(u.ID, sid, u.Email)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Refresh rotates the refresh token of a live session and issues a new access token.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, model.Identity, error) {
	if refreshToken == "" {
		return model.Tokens{}, model.Identity{}, errs.ErrUnauthorized
	}
	oldHash := pkgcrypto.HashToken(refreshToken)
	sess, err := s.sessions.GetByRefreshHash(ctx, oldHash)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.Identity{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.Tokens{}, model.Identity{}, errs.Persistence("get session", err)
	}
	now := s.opts.now()
	if !sess.Active(now) {
		return model.Tokens{}, model.Identity{}, errs.ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.Identity{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.Tokens{}, model.Identity{}, errs.Persistence("get user", err)
	}

	refresh, err := pkgcrypto.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	if err := s.sessions.Rotate(ctx, sess.ID, oldHash, pkgcrypto.HashToken(refresh), now.Add(s.opts.refreshTTL), now); err != nil {
		return model.Tokens{}, model.Identity{}, errs.Persistence("rotate session", err)
	}
	access, exp, err := s.tokens.Issue(u.ID, sess.ID, u.Email)
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, u.Identity(), nil
}

// SignOut revokes the session. Revoking an unknown or revoked session succeeds.
func (s *AuthServiceImpl) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	return errs.Persistence("revoke session", s.sessions.Revoke(ctx, sessionID, s.opts.now()))
}

// Authenticate parses the access token and checks that its session is still live.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return Principal{}, errs.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, errs.ErrNotFound) {
		return Principal{}, errs.ErrUnauthorized
	}
	if err != nil {
		return Principal{}, errs.Persistence("get session", err)
	}
	if sess.UserID != claims.UserID || !sess.Active(s.opts.now()) {
		return Principal{}, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return Principal{}, errs.ErrUnauthorized
	}
	if err != nil {
		return Principal{}, errs.Persistence("get user", err)
	}
	return Principal{Identity: u.Identity(), SessionID: sess.ID}, nil
}

// Profile returns the profile of userID.
func (s *AuthServiceImpl) Profile(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	p, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, errs.Persistence("get profile", err)
	}
	return p, nil
}

// UpdateProfile trims and applies the provided fields.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) (*model.Profile, error) {
	if upd.FullName != nil {
		v := strings.TrimSpace(*upd.FullName)
		upd.FullName = &v
	}
	if upd.AvatarURL != nil {
		v := strings.TrimSpace(*upd.AvatarURL)
		upd.AvatarURL = &v
	}
	p, err := s.users.UpdateProfile(ctx, userID, upd, s.opts.now())
	if err != nil {
		return nil, errs.Persistence("update profile", err)
	}
	return p, nil
}

// RequestPasswordReset stores a recovery token and hands it to the mailer.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		s.opts.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return errs.Persistence("get user", err)
	}

	raw, err := pkgcrypto.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return err
	}
	now := s.opts.now()
	rt := &model.RecoveryToken{
		TokenHash: pkgcrypto.HashToken(raw),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.opts.recoveryTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateRecovery(ctx, rt); err != nil {
		return errs.Persistence("create recovery token", err)
	}
	return s.opts.mailer.SendPasswordReset(ctx, u.Email, raw)
}

// ResetPassword consumes the recovery token and revokes every session of the user.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, recoveryToken, password, confirm string) error {
	if strings.TrimSpace(recoveryToken) == "" {
		return errs.ErrInvalidRecoveryToken
	}
	if err := checkPassword(password, confirm); err != nil {
		return err
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return err
	}
	uid, err := s.sessions.ResetPassword(ctx, pkgcrypto.HashToken(recoveryToken), hash, salt, s.opts.now())
	if err != nil {
		return errs.Persistence("reset password", err)
	}
	s.opts.log.Info("password reset", zap.String("user_id", uid.String()))
	return nil
}

// UpdatePassword replaces the password of a signed-in user.
func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, userID uuid.UUID, password, confirm string) error {
	if err := checkPassword(password, confirm); err != nil {
		return err
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return err
	}
	return errs.Persistence("set password", s.users.SetPassword(ctx, userID, hash, salt))
}
