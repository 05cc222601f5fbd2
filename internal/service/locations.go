package service

import (
	"context"
	"strings"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// LocationService defines user-scoped location operations.
type LocationService interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Location, error)
	Create(ctx context.Context, userID uuid.UUID, name, description string) (*model.Location, error)
	Update(ctx context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error)
	// Delete fails with ErrHasDependents while boxes reference the location.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	BoxCount(ctx context.Context, userID, id uuid.UUID) (int, error)
}

type LocationServiceImpl struct {
	repo repository.LocationRepository
	opts options
}

// NewLocationService constructs LocationService.
func NewLocationService(repo repository.LocationRepository, opts ...Option) *LocationServiceImpl {
	return &LocationServiceImpl{repo: repo, opts: buildOptions(opts)}
}

func (s *LocationServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Location, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, errs.Persistence("list locations", err)
	}
	if list == nil {
		list = []model.Location{}
	}
	return list, nil
}

// Create validates the name and inserts a new location.
func (s *LocationServiceImpl) Create(ctx context.Context, userID uuid.UUID, name, description string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("name", "location name is required")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	l := &model.Location{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.opts.now(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, errs.Persistence("create location", err)
	}
	return l, nil
}

func (s *LocationServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	if upd.Name != nil {
		v := strings.TrimSpace(*upd.Name)
		if v == "" {
			return nil, errs.Invalid("name", "location name is required")
		}
		upd.Name = &v
	}
	if upd.Description != nil {
		v := strings.TrimSpace(*upd.Description)
		upd.Description = &v
	}
	l, err := s.repo.Update(ctx, userID, id, upd)
	if err != nil {
		return nil, errs.Persistence("update location", err)
	}
	return l, nil
}

// Delete refuses while boxes are assigned; the store enforces the same rule.
func (s *LocationServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	n, err := s.repo.CountBoxes(ctx, userID, id)
	if err != nil {
		return errs.Persistence("count boxes", err)
	}
	if n > 0 {
		return errs.ErrHasDependents
	}
	return errs.Persistence("delete location", s.repo.Delete(ctx, userID, id))
}

func (s *LocationServiceImpl) BoxCount(ctx context.Context, userID, id uuid.UUID) (int, error) {
	n, err := s.repo.CountBoxes(ctx, userID, id)
	if err != nil {
		return 0, errs.Persistence("count boxes", err)
	}
	return n, nil
}
