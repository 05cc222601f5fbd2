package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSessionRepo_CreateGet(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now()
	s := &model.Session{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		RefreshHash: []byte("rh"),
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO sessions \(id, user_id, refresh_hash, expires_at, created_at\)`).
		WithArgs(s.ID, s.UserID, s.RefreshHash, s.ExpiresAt, s.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, s))

	cols := []string{"id", "user_id", "refresh_hash", "expires_at", "created_at", "revoked_at"}
	mock.ExpectQuery(`FROM sessions WHERE refresh_hash=\$1`).
		WithArgs([]byte("rh")).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(s.ID, s.UserID, s.RefreshHash, s.ExpiresAt, s.CreatedAt, (*time.Time)(nil)))
	got, err := r.GetByRefreshHash(ctx, []byte("rh"))
	require.NoError(t, err)
	require.True(t, got.Active(now))

	mock.ExpectQuery(`FROM sessions WHERE id=\$1`).
		WithArgs(s.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, s.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSessionRepo_RotateRevoke(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now()
	id := uuid.Must(uuid.NewV4())
	exp := now.Add(time.Hour)

	q := `UPDATE sessions SET refresh_hash=\$3, expires_at=\$4 WHERE id=\$1 AND refresh_hash=\$2 AND revoked_at IS NULL`
	mock.ExpectExec(q).
		WithArgs(id, []byte("old"), []byte("new"), exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Rotate(ctx, id, []byte("old"), []byte("new"), exp, now))

	mock.ExpectExec(q).
		WithArgs(id, []byte("old"), []byte("new"), exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Rotate(ctx, id, []byte("old"), []byte("new"), exp, now), errs.ErrUnauthorized)

	mock.ExpectExec(`UPDATE sessions SET revoked_at = COALESCE\(revoked_at, \$2\) WHERE id=\$1`).
		WithArgs(id, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Revoke(ctx, id, now))
}

func TestSessionRepo_ResetPassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now()
	uid := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO recovery_tokens`).
		WithArgs([]byte("th"), uid, now.Add(time.Hour), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.CreateRecovery(ctx, &model.RecoveryToken{
		TokenHash: []byte("th"), UserID: uid, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	consume := `UPDATE recovery_tokens SET used_at=\$2 WHERE token_hash=\$1 AND used_at IS NULL`
	mock.ExpectBegin()
	mock.ExpectQuery(consume).
		WithArgs([]byte("th"), now).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(uid))
	mock.ExpectExec(`UPDATE users SET pwd_hash=\$2, salt=\$3 WHERE id=\$1`).
		WithArgs(uid, []byte("h"), []byte("s")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE sessions SET revoked_at=\$2 WHERE user_id=\$1 AND revoked_at IS NULL`).
		WithArgs(uid, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()
	got, err := r.ResetPassword(ctx, []byte("th"), []byte("h"), []byte("s"), now)
	require.NoError(t, err)
	require.Equal(t, uid, got)

	mock.ExpectBegin()
	mock.ExpectQuery(consume).
		WithArgs([]byte("th"), now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, err = r.ResetPassword(ctx, []byte("th"), []byte("h"), []byte("s"), now)
	require.ErrorIs(t, err, errs.ErrInvalidRecoveryToken)

	require.NoError(t, mock.ExpectationsWereMet())
}
