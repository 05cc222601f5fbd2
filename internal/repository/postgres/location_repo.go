package postgres

import (
	"context"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// LocationRepo implements LocationRepository using PostgreSQL.
type LocationRepo struct{ db *DB }

// NewLocationRepo constructs a location repository.
func NewLocationRepo(db *DB) *LocationRepo { return &LocationRepo{db: db} }

const locationColumns = `id, user_id, name, COALESCE(description, ''), created_at`

func scanLocation(row pgx.Row) (*model.Location, error) {
	var l model.Location
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns the user's locations, oldest first.
func (r *LocationRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations WHERE user_id=$1 ORDER BY created_at, name`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Get selects one location of the user.
func (r *LocationRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations WHERE id=$1 AND user_id=$2`
	l, err := scanLocation(r.db.Pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, noRows(err)
	}
	return l, nil
}

// Create inserts a location.
func (r *LocationRepo) Create(ctx context.Context, l *model.Location) error {
	const q = `
INSERT INTO locations (id, user_id, name, description, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, l.ID, l.UserID, l.Name, l.Description, l.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Update applies the non-nil fields of upd.
func (r *LocationRepo) Update(
	ctx context.Context, userID, id uuid.UUID, upd model.LocationUpdate,
) (*model.Location, error) {
	q := `
UPDATE locations SET name = COALESCE($3, name), description = COALESCE($4, description)
WHERE id=$1 AND user_id=$2
RETURNING ` + locationColumns
	l, err := scanLocation(r.db.Pool.QueryRow(ctx, q, id, userID, upd.Name, upd.Description))
	if err != nil {
		return nil, noRows(err)
	}
	return l, nil
}

// Delete removes a location. Boxes still referencing it block the delete.
func (r *LocationRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const q = `DELETE FROM locations WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.ErrHasDependents
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CountBoxes returns the number of boxes assigned to the location.
func (r *LocationRepo) CountBoxes(ctx context.Context, userID, id uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM boxes WHERE location_id=$1 AND user_id=$2`
	var n int
	err := r.db.Pool.QueryRow(ctx, q, id, userID).Scan(&n)
	return n, err
}
