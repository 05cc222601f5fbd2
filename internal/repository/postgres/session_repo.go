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

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, user_id, refresh_hash, expires_at, created_at, revoked_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.RefreshHash, &s.ExpiresAt, &s.CreatedAt, &s.RevokedAt); err != nil {
		return nil, noRows(err)
	}
	return &s, nil
}

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, user_id, refresh_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.UserID, s.RefreshHash, s.ExpiresAt, s.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a session by ID.
func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id))
}

// GetByRefreshHash selects a session by refresh token hash.
func (r *SessionRepo) GetByRefreshHash(ctx context.Context, hash []byte) (*model.Session, error) {
	return scanSession(r.db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_hash=$1`, hash))
}

// Rotate replaces the refresh hash only if the session is live and still holds oldHash,
// so a refresh token can be redeemed once.
func (r *SessionRepo) Rotate(
	ctx context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt, now time.Time,
) error {
	const q = `
UPDATE sessions SET refresh_hash=$3, expires_at=$4
WHERE id=$1 AND refresh_hash=$2 AND revoked_at IS NULL AND expires_at > $5`
	tag, err := r.db.Pool.Exec(ctx, q, id, oldHash, newHash, expiresAt, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUnauthorized
	}
	return nil
}

// Revoke marks a session revoked. Already revoked sessions keep their first timestamp.
func (r *SessionRepo) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	const q = `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, now)
	return err
}

// CreateRecovery stores a password recovery token hash.
func (r *SessionRepo) CreateRecovery(ctx context.Context, t *model.RecoveryToken) error {
	const q = `
INSERT INTO recovery_tokens (token_hash, user_id, expires_at, created_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, t.TokenHash, t.UserID, t.ExpiresAt, t.CreatedAt)
	return err
}

// ResetPassword consumes the recovery token, stores the new password and revokes all sessions.
func (r *SessionRepo) ResetPassword(
	ctx context.Context, tokenHash, pwdHash, salt []byte, now time.Time,
) (userID uuid.UUID, err error) {
	const consume = `
UPDATE recovery_tokens SET used_at=$2
WHERE token_hash=$1 AND used_at IS NULL AND expires_at > $2
RETURNING user_id`
	const setPwd = `UPDATE users SET pwd_hash=$2, salt=$3 WHERE id=$1`
	const revokeAll = `UPDATE sessions SET revoked_at=$2 WHERE user_id=$1 AND revoked_at IS NULL`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, consume, tokenHash, now).Scan(&userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrInvalidRecoveryToken
			}
			return err
		}
		if _, err := tx.Exec(ctx, setPwd, userID, pwdHash, salt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, revokeAll, userID, now)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}
