package local

import (
	"context"
	"slices"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
)

// BoxRepo implements repository.BoxRepository on the local store.
type BoxRepo struct{ s *Store }

func NewBoxRepo(s *Store) *BoxRepo { return &BoxRepo{s: s} }

// List returns the user's boxes, most recently updated first.
func (r *BoxRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Box, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.boxes(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Box
	for _, rec := range recs {
		if rec.UserID == userID {
			out = append(out, rec.model())
		}
	}
	slices.SortStableFunc(out, func(a, b model.Box) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

func (r *BoxRepo) find(ctx context.Context, match func(boxRecord) bool) (*model.Box, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.boxes(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(recs, match)
	if i < 0 {
		return nil, errs.ErrNotFound
	}
	b := recs[i].model()
	return &b, nil
}

func (r *BoxRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Box, error) {
	return r.find(ctx, func(rec boxRecord) bool { return rec.ID == id && rec.UserID == userID })
}

func (r *BoxRepo) FindByQRCode(ctx context.Context, userID uuid.UUID, code string) (*model.Box, error) {
	return r.find(ctx, func(rec boxRecord) bool { return rec.QRCode == code && rec.UserID == userID })
}

// Save inserts or replaces the box. The creation time of an existing box is kept and
// a box id owned by another user reads as not found.
func (r *BoxRepo) Save(ctx context.Context, b *model.Box) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.boxes(ctx)
	if err != nil {
		return err
	}
	rec := toBoxRecord(b)
	i := slices.IndexFunc(recs, func(x boxRecord) bool { return x.ID == b.ID })
	switch {
	case i < 0:
		recs = append(recs, rec)
	case recs[i].UserID != b.UserID:
		return errs.ErrNotFound
	default:
		rec.CreatedAt = recs[i].CreatedAt
		recs[i] = rec
	}
	return r.s.store(ctx, BoxesKey, recs)
}

func (r *BoxRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.boxes(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(recs, func(rec boxRecord) bool { return rec.ID == id && rec.UserID == userID })
	if i < 0 {
		return errs.ErrNotFound
	}
	return r.s.store(ctx, BoxesKey, slices.Delete(recs, i, i+1))
}
