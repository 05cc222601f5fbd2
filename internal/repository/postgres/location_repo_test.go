package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var locationCols = []string{"id", "user_id", "name", "description", "created_at"}

func TestLocationRepo_CRUD(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	ctx := context.Background()
	now := time.Now()
	uid := uuid.Must(uuid.NewV4())
	l := &model.Location{ID: uuid.Must(uuid.NewV4()), UserID: uid, Name: "Garage", CreatedAt: now}

	mock.ExpectExec(`INSERT INTO locations \(id, user_id, name, description, created_at\)`).
		WithArgs(l.ID, uid, "Garage", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, l))

	mock.ExpectQuery(`FROM locations WHERE user_id=\$1 ORDER BY created_at`).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(locationCols).
			AddRow(l.ID, uid, "Garage", "", now).
			AddRow(uuid.Must(uuid.NewV4()), uid, "Attic", "top floor", now))
	list, err := r.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Attic", list[1].Name)

	name := "Shed"
	mock.ExpectQuery(`UPDATE locations SET name = COALESCE\(\$3, name\)`).
		WithArgs(l.ID, uid, &name, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(locationCols).AddRow(l.ID, uid, "Shed", "", now))
	got, err := r.Update(ctx, uid, l.ID, model.LocationUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Shed", got.Name)

	mock.ExpectQuery(`FROM locations WHERE id=\$1 AND user_id=\$2`).
		WithArgs(l.ID, uid).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, uid, l.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLocationRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	del := `DELETE FROM locations WHERE id=\$1 AND user_id=\$2`

	mock.ExpectQuery(`SELECT count\(\*\) FROM boxes WHERE location_id=\$1 AND user_id=\$2`).
		WithArgs(id, uid).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	n, err := r.CountBoxes(ctx, uid, id)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	mock.ExpectExec(del).WithArgs(id, uid).WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.Delete(ctx, uid, id), errs.ErrHasDependents)

	mock.ExpectExec(del).WithArgs(id, uid).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, uid, id), errs.ErrNotFound)

	mock.ExpectExec(del).WithArgs(id, uid).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, uid, id))
}
