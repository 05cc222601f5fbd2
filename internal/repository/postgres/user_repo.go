package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const profileColumns = `id, email, COALESCE(full_name, ''), COALESCE(avatar_url, ''), COALESCE(invite_code, ''),
invited_by, invites_remaining, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.InviteCode,
		&p.InvitedBy, &p.InvitesRemaining, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &p, nil
}

// CreateWithInvite locks the pending invite, inserts the user and profile and marks the
// invite used. Nothing is written when any step fails.
func (r *UserRepo) CreateWithInvite(
	ctx context.Context, u *model.User, p *model.Profile, code string, now time.Time,
) error {
	const lock = `
SELECT id, created_by FROM invites
WHERE code=$1 AND status='pending' AND expires_at >= $2
FOR UPDATE`
	const insUser = `
INSERT INTO users (id, email, pwd_hash, salt, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	const insProfile = `
INSERT INTO profiles (id, email, full_name, invite_code, invited_by, invites_remaining, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	const consume = `
UPDATE invites SET status='used', used_by=$2, used_at=$3
WHERE id=$1`

	meta := u.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var inviteID uuid.UUID
		var createdBy *uuid.UUID
		if err := tx.QueryRow(ctx, lock, code, now).Scan(&inviteID, &createdBy); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrInvalidOrExpiredCode
			}
			return err
		}

		if _, err := tx.Exec(ctx, insUser, u.ID, u.Email, u.PwdHash, u.Salt, meta, now); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}

		p.ID, p.Email, p.InviteCode, p.InvitedBy = u.ID, u.Email, code, createdBy
		p.CreatedAt, p.UpdatedAt = now, now
		if _, err := tx.Exec(ctx, insProfile, p.ID, p.Email, p.FullName, p.InviteCode, p.InvitedBy,
			p.InvitesRemaining, now); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, consume, inviteID, u.ID, now)
		return err
	})
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `
SELECT id, email, pwd_hash, salt, metadata, created_at
FROM users WHERE id=$1`
	return r.getUser(ctx, q, id)
}

// GetByEmail selects a user by case-folded email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
SELECT id, email, pwd_hash, salt, metadata, created_at
FROM users WHERE email=$1`
	return r.getUser(ctx, q, email)
}

func (r *UserRepo) getUser(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PwdHash, &u.Salt, &u.Metadata, &u.CreatedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &u, nil
}

// SetPassword replaces the password hash and salt.
func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte) error {
	const q = `UPDATE users SET pwd_hash=$2, salt=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetProfile selects the profile of a user.
func (r *UserRepo) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	return scanProfile(r.db.Pool.QueryRow(ctx, q, id))
}

// UpdateProfile applies the non-nil fields of upd.
func (r *UserRepo) UpdateProfile(
	ctx context.Context, id uuid.UUID, upd model.ProfileUpdate, now time.Time,
) (*model.Profile, error) {
	q := `
UPDATE profiles
SET full_name = COALESCE($2, full_name), avatar_url = COALESCE($3, avatar_url), updated_at = $4
WHERE id = $1
RETURNING ` + profileColumns
	return scanProfile(r.db.Pool.QueryRow(ctx, q, id, upd.FullName, upd.AvatarURL, now))
}

// CountProfiles returns the number of profiles.
func (r *UserRepo) CountProfiles(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&n)
	return n, err
}
