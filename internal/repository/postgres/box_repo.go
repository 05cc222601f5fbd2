package postgres

import (
	"context"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// BoxRepo implements BoxRepository using PostgreSQL.
type BoxRepo struct{ db *DB }

// NewBoxRepo constructs a box repository.
func NewBoxRepo(db *DB) *BoxRepo { return &BoxRepo{db: db} }

const boxSelect = `
SELECT b.id, b.user_id, b.location_id, b.name, COALESCE(b.description, ''), b.qr_code,
       COALESCE(b.image_url, ''), COALESCE(b.ai_analysis, ''), b.created_at, b.updated_at,
       COALESCE((SELECT array_agg(c.content ORDER BY c.position) FROM box_contents c WHERE c.box_id = b.id), '{}')
FROM boxes b`

func scanBox(row pgx.Row) (*model.Box, error) {
	var b model.Box
	if err := row.Scan(&b.ID, &b.UserID, &b.LocationID, &b.Name, &b.Description, &b.QRCode,
		&b.ImageURL, &b.AIAnalysis, &b.CreatedAt, &b.UpdatedAt, &b.Contents); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns the user's boxes, most recently updated first.
func (r *BoxRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Box, error) {
	rows, err := r.db.Pool.Query(ctx, boxSelect+` WHERE b.user_id=$1 ORDER BY b.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Get selects one box of the user.
func (r *BoxRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Box, error) {
	b, err := scanBox(r.db.Pool.QueryRow(ctx, boxSelect+` WHERE b.id=$1 AND b.user_id=$2`, id, userID))
	if err != nil {
		return nil, noRows(err)
	}
	return b, nil
}

// FindByQRCode selects the user's box carrying code.
func (r *BoxRepo) FindByQRCode(ctx context.Context, userID uuid.UUID, code string) (*model.Box, error) {
	b, err := scanBox(r.db.Pool.QueryRow(ctx, boxSelect+` WHERE b.qr_code=$1 AND b.user_id=$2`, code, userID))
	if err != nil {
		return nil, noRows(err)
	}
	return b, nil
}

// Save upserts the box and replaces its contents in one transaction.
// A box id owned by another user reads as not found.
func (r *BoxRepo) Save(ctx context.Context, b *model.Box) error {
	const upsert = `
INSERT INTO boxes (id, user_id, location_id, name, description, qr_code, image_url, ai_analysis, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE
SET location_id = EXCLUDED.location_id, name = EXCLUDED.name, description = EXCLUDED.description,
    image_url = EXCLUDED.image_url, ai_analysis = EXCLUDED.ai_analysis, updated_at = EXCLUDED.updated_at
WHERE boxes.user_id = EXCLUDED.user_id`
	const clear = `DELETE FROM box_contents WHERE box_id=$1`
	const fill = `
INSERT INTO box_contents (box_id, position, content)
SELECT $1, t.ord - 1, t.content FROM unnest($2::text[]) WITH ORDINALITY AS t(content, ord)`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, upsert, b.ID, b.UserID, b.LocationID, b.Name, b.Description, b.QRCode,
			b.ImageURL, b.AIAnalysis, b.CreatedAt, b.UpdatedAt)
		switch {
		case isForeignKeyViolation(err):
			return errs.ErrNotFound
		case isUniqueViolation(err):
			return errs.ErrAlreadyExists
		case err != nil:
			return err
		case tag.RowsAffected() == 0:
			return errs.ErrNotFound
		}
		if _, err := tx.Exec(ctx, clear, b.ID); err != nil {
			return err
		}
		if len(b.Contents) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, fill, b.ID, b.Contents)
		return err
	})
}

// Delete removes a box; its contents cascade.
func (r *BoxRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM boxes WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
