package local

import (
	"context"
	"slices"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
)

var defaultLocations = []struct{ name, description string }{
	{"Garage", "Main storage area for seasonal items and tools"},
	{"Storage Room", "Climate-controlled room for electronics and appliances"},
	{"Bedroom Closet", "Upper shelf storage for clothing and linens"},
	{"Basement", "Long-term storage for books and archives"},
	{"Attic", "Overhead storage space - check temperature sensitivity"},
}

// DefaultLocations returns the starter set written for userID on a fresh store.
// IDs are derived from userID so a reseed yields the same rows.
func DefaultLocations(userID uuid.UUID) []model.Location {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Location, 0, len(defaultLocations))
	for i, d := range defaultLocations {
		out = append(out, model.Location{
			ID:          uuid.NewV5(userID, d.name),
			UserID:      userID,
			Name:        d.name,
			Description: d.description,
			CreatedAt:   base.AddDate(0, 0, i),
		})
	}
	return out
}

// LocationRepo implements repository.LocationRepository on the local store.
type LocationRepo struct{ s *Store }

func NewLocationRepo(s *Store) *LocationRepo { return &LocationRepo{s: s} }

// locations loads the document, seeding the defaults for userID when it was never written.
// Callers hold s.mu.
func (s *Store) locations(ctx context.Context, userID uuid.UUID) ([]locationRecord, error) {
	var recs []locationRecord
	found, err := s.load(ctx, LocationsKey, &recs)
	if err != nil {
		return nil, err
	}
	if found {
		return recs, nil
	}
	for _, l := range DefaultLocations(userID) {
		recs = append(recs, toLocationRecord(&l))
	}
	if err := s.store(ctx, LocationsKey, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) boxes(ctx context.Context) ([]boxRecord, error) {
	var recs []boxRecord
	if _, err := s.load(ctx, BoxesKey, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// List returns the user's locations, oldest first.
func (r *LocationRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.locations(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []model.Location
	for _, rec := range recs {
		if rec.UserID == userID {
			out = append(out, rec.model())
		}
	}
	slices.SortStableFunc(out, func(a, b model.Location) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *LocationRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.locations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.ID == id && rec.UserID == userID {
			l := rec.model()
			return &l, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *LocationRepo) Create(ctx context.Context, l *model.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.locations(ctx, l.UserID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.ID == l.ID {
			return errs.ErrAlreadyExists
		}
	}
	return r.s.store(ctx, LocationsKey, append(recs, toLocationRecord(l)))
}

// Update applies the non-nil fields of upd.
func (r *LocationRepo) Update(ctx context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.locations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].ID != id || recs[i].UserID != userID {
			continue
		}
		if upd.Name != nil {
			recs[i].Name = *upd.Name
		}
		if upd.Description != nil {
			recs[i].Description = *upd.Description
		}
		if err := r.s.store(ctx, LocationsKey, recs); err != nil {
			return nil, err
		}
		l := recs[i].model()
		return &l, nil
	}
	return nil, errs.ErrNotFound
}

// Delete removes a location. Boxes still referencing it block the delete.
func (r *LocationRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	recs, err := r.s.locations(ctx, userID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(recs, func(rec locationRecord) bool { return rec.ID == id && rec.UserID == userID })
	if i < 0 {
		return errs.ErrNotFound
	}
	boxes, err := r.s.boxes(ctx)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(boxes, func(b boxRecord) bool { return b.LocationID == id }) {
		return errs.ErrHasDependents
	}
	return r.s.store(ctx, LocationsKey, slices.Delete(recs, i, i+1))
}

// CountBoxes returns the number of the user's boxes assigned to the location.
func (r *LocationRepo) CountBoxes(ctx context.Context, userID, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	boxes, err := r.s.boxes(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range boxes {
		if b.LocationID == id && b.UserID == userID {
			n++
		}
	}
	return n, nil
}
