package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// InviteRepo implements InviteRepository using PostgreSQL.
type InviteRepo struct{ db *DB }

// NewInviteRepo constructs an invite repository.
func NewInviteRepo(db *DB) *InviteRepo { return &InviteRepo{db: db} }

const inviteColumns = `id, code, created_by, used_by, status, expires_at, created_at, used_at`

func scanInvite(row pgx.Row) (*model.Invite, error) {
	var (
		inv    model.Invite
		status string
	)
	if err := row.Scan(&inv.ID, &inv.Code, &inv.CreatedBy, &inv.UsedBy, &status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UsedAt); err != nil {
		return nil, err
	}
	s, ok := model.ParseInviteStatus(status)
	if !ok {
		return nil, fmt.Errorf("invite %s: unknown status %q", inv.ID, status)
	}
	inv.Status = s
	return &inv, nil
}

// Lookup selects an invite by code.
func (r *InviteRepo) Lookup(ctx context.Context, code string) (*model.Invite, error) {
	q := `SELECT ` + inviteColumns + ` FROM invites WHERE code=$1`
	inv, err := scanInvite(r.db.Pool.QueryRow(ctx, q, code))
	if err != nil {
		return nil, noRows(err)
	}
	return inv, nil
}

// CreateForProfile spends one invite of the creator and inserts inv.
// The conditional decrement serialises concurrent creators on the profile row.
func (r *InviteRepo) CreateForProfile(ctx context.Context, inv *model.Invite) error {
	if inv.CreatedBy == nil {
		return errors.New("invite without creator")
	}
	const spend = `
UPDATE profiles SET invites_remaining = invites_remaining - 1, updated_at = $2
WHERE id = $1 AND invites_remaining > 0
RETURNING invites_remaining`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var left int
		if err := tx.QueryRow(ctx, spend, *inv.CreatedBy, inv.CreatedAt).Scan(&left); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNoInvitesRemaining
			}
			return err
		}
		return insertInvite(ctx, tx, inv)
	})
}

// CreateSystem inserts an invite that no profile paid for.
func (r *InviteRepo) CreateSystem(ctx context.Context, inv *model.Invite) error {
	return insertInvite(ctx, r.db.Pool, inv)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertInvite(ctx context.Context, ex execer, inv *model.Invite) error {
	const q = `
INSERT INTO invites (id, code, created_by, status, expires_at, created_at)
VALUES ($1, $2, $3, 'pending', $4, $5)`
	inv.Status = model.InvitePending
	_, err := ex.Exec(ctx, q, inv.ID, inv.Code, inv.CreatedBy, inv.ExpiresAt, inv.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// ListByCreator returns the invites created by a profile, newest first.
func (r *InviteRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Invite, error) {
	q := `SELECT ` + inviteColumns + ` FROM invites WHERE created_by=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Revoke locks the invite and revokes it when it is still pending and unexpired at now.
func (r *InviteRepo) Revoke(
	ctx context.Context, creatorID, inviteID uuid.UUID, now time.Time,
) (inv *model.Invite, err error) {
	sel := `SELECT ` + inviteColumns + ` FROM invites WHERE id=$1 AND created_by=$2 FOR UPDATE`
	const upd = `UPDATE invites SET status='revoked' WHERE id=$1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanInvite(tx.QueryRow(ctx, sel, inviteID, creatorID))
		if err != nil {
			return noRows(err)
		}
		if !model.InviteUsable(cur.Status, cur.ExpiresAt, now) {
			return errs.ErrInviteNotPending
		}
		if _, err := tx.Exec(ctx, upd, inviteID); err != nil {
			return err
		}
		cur.Status = model.InviteRevoked
		inv = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
