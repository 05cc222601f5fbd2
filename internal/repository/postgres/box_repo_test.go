package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/qrcode"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var boxCols = []string{"id", "user_id", "location_id", "name", "description", "qr_code",
	"image_url", "ai_analysis", "created_at", "updated_at", "contents"}

func newBox(now time.Time, contents ...string) *model.Box {
	id := uuid.Must(uuid.NewV4())
	return &model.Box{
		ID:         id,
		UserID:     uuid.Must(uuid.NewV4()),
		LocationID: uuid.Must(uuid.NewV4()),
		Name:       "Xmas",
		QRCode:     qrcode.Encode(id),
		Contents:   contents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func boxRow(rows *pgxmock.Rows, b *model.Box) *pgxmock.Rows {
	return rows.AddRow(b.ID, b.UserID, b.LocationID, b.Name, b.Description, b.QRCode,
		b.ImageURL, b.AIAnalysis, b.CreatedAt, b.UpdatedAt, b.Contents)
}

func expectSave(mock pgxmock.PgxPoolIface, b *model.Box) {
	mock.ExpectExec(`INSERT INTO boxes .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(b.ID, b.UserID, b.LocationID, b.Name, b.Description, b.QRCode,
			b.ImageURL, b.AIAnalysis, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM box_contents WHERE box_id=\$1`).
		WithArgs(b.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
}

func TestBoxRepo_Save_ReplacesContents(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoxRepo(db)
	b := newBox(time.Now(), "lights", "ornaments")

	mock.ExpectBegin()
	expectSave(mock, b)
	mock.ExpectExec(`INSERT INTO box_contents \(box_id, position, content\)`).
		WithArgs(b.ID, b.Contents).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	require.NoError(t, r.Save(context.Background(), b))

	// an emptied list clears the rows and inserts nothing
	b.Contents = nil
	mock.ExpectBegin()
	expectSave(mock, b)
	mock.ExpectCommit()
	require.NoError(t, r.Save(context.Background(), b))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepo_Save_Errors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoxRepo(db)
	b := newBox(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO boxes`).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()
	require.ErrorIs(t, r.Save(context.Background(), b), errs.ErrNotFound, "foreign owner")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO boxes`).WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()
	require.ErrorIs(t, r.Save(context.Background(), b), errs.ErrNotFound, "unknown location")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO boxes`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	require.ErrorIs(t, r.Save(context.Background(), b), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepo_Read(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoxRepo(db)
	ctx := context.Background()
	b := newBox(time.Now(), "a", "b")

	mock.ExpectQuery(`FROM boxes b WHERE b.user_id=\$1 ORDER BY b.updated_at DESC`).
		WithArgs(b.UserID).
		WillReturnRows(boxRow(pgxmock.NewRows(boxCols), b))
	list, err := r.List(ctx, b.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"a", "b"}, list[0].Contents)

	mock.ExpectQuery(`WHERE b.qr_code=\$1 AND b.user_id=\$2`).
		WithArgs(b.QRCode, b.UserID).
		WillReturnRows(boxRow(pgxmock.NewRows(boxCols), b))
	got, err := r.FindByQRCode(ctx, b.UserID, b.QRCode)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	mock.ExpectQuery(`WHERE b.id=\$1 AND b.user_id=\$2`).
		WithArgs(b.ID, b.UserID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, b.UserID, b.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM boxes WHERE id=\$1 AND user_id=\$2`).
		WithArgs(b.ID, b.UserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, b.UserID, b.ID), errs.ErrNotFound)
}
