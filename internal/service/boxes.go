package service

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/qrcode"
	"github.com/and161185/binqr/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// NewBox is the create form of a box.
type NewBox struct {
	Name        string
	Description string
	LocationID  uuid.UUID
	Contents    []string
	ImageURL    string
	AIAnalysis  string
}

// BoxService defines user-scoped box operations.
type BoxService interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Box, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Box, error)
	// Create assigns a new id and its QR payload.
	Create(ctx context.Context, userID uuid.UUID, in NewBox) (*model.Box, error)
	// Update replaces contents and applies the optional fields.
	Update(ctx context.Context, userID, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error)
	// FindByCode resolves a scanned QR payload.
	FindByCode(ctx context.Context, userID uuid.UUID, payload string) (*model.Box, error)
	// Search matches query against name, description and contents; locationID narrows it.
	Search(ctx context.Context, userID uuid.UUID, query string, locationID *uuid.UUID) ([]model.Box, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type BoxServiceImpl struct {
	boxes     repository.BoxRepository
	locations repository.LocationRepository
	opts      options
}

// NewBoxService constructs BoxService; locations is used to check ownership.
func NewBoxService(boxes repository.BoxRepository, locations repository.LocationRepository, opts ...Option) *BoxServiceImpl {
	return &BoxServiceImpl{boxes: boxes, locations: locations, opts: buildOptions(opts)}
}

func (s *BoxServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Box, error) {
	list, err := s.boxes.List(ctx, userID)
	if err != nil {
		return nil, errs.Persistence("list boxes", err)
	}
	if list == nil {
		list = []model.Box{}
	}
	return list, nil
}

func (s *BoxServiceImpl) Get(ctx context.Context, userID, id uuid.UUID) (*model.Box, error) {
	b, err := s.boxes.Get(ctx, userID, id)
	if err != nil {
		return nil, errs.Persistence("get box", err)
	}
	return b, nil
}

// checkLocation reports a foreign or missing location as a validation error on the field.
func (s *BoxServiceImpl) checkLocation(ctx context.Context, userID, locationID uuid.UUID) error {
	if locationID == uuid.Nil {
		return errs.Invalid("location_id", "location is required")
	}
	_, err := s.locations.Get(ctx, userID, locationID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.Invalid("location_id", "location does not exist")
	}
	return errs.Persistence("get location", err)
}

func (s *BoxServiceImpl) Create(ctx context.Context, userID uuid.UUID, in NewBox) (*model.Box, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.Invalid("name", "box name is required")
	}
	if err := s.checkLocation(ctx, userID, in.LocationID); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.opts.now()
	b := &model.Box{
		ID:          id,
		UserID:      userID,
		LocationID:  in.LocationID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		QRCode:      qrcode.Encode(id),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Contents:    model.NormalizeContents(in.Contents),
		AIAnalysis:  in.AIAnalysis,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.boxes.Save(ctx, b); err != nil {
		return nil, errs.Persistence("save box", err)
	}
	return b, nil
}

// Update loads the box, overwrites its contents and the provided fields, and saves it
// with a fresh updated time.
func (s *BoxServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error) {
	b, err := s.boxes.Get(ctx, userID, id)
	if err != nil {
		return nil, errs.Persistence("get box", err)
	}
	if upd.Name != nil {
		v := strings.TrimSpace(*upd.Name)
		if v == "" {
			return nil, errs.Invalid("name", "box name is required")
		}
		b.Name = v
	}
	if upd.Description != nil {
		b.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.ImageURL != nil {
		b.ImageURL = strings.TrimSpace(*upd.ImageURL)
	}
	if upd.AIAnalysis != nil {
		b.AIAnalysis = *upd.AIAnalysis
	}
	if upd.LocationID != nil && *upd.LocationID != b.LocationID {
		if err := s.checkLocation(ctx, userID, *upd.LocationID); err != nil {
			return nil, err
		}
		b.LocationID = *upd.LocationID
	}
	b.Contents = model.NormalizeContents(upd.Contents)
	b.UpdatedAt = s.opts.now()

	if err := s.boxes.Save(ctx, b); err != nil {
		return nil, errs.Persistence("save box", err)
	}
	return b, nil
}

// FindByCode accepts the payload as scanned. Anything that is not a BinQR payload is not found.
func (s *BoxServiceImpl) FindByCode(ctx context.Context, userID uuid.UUID, payload string) (*model.Box, error) {
	id, ok := qrcode.Parse(payload)
	if !ok {
		return nil, errs.ErrNotFound
	}
	b, err := s.boxes.FindByQRCode(ctx, userID, qrcode.Encode(id))
	if err != nil {
		return nil, errs.Persistence("find box by code", err)
	}
	return b, nil
}

func (s *BoxServiceImpl) Search(ctx context.Context, userID uuid.UUID, query string, locationID *uuid.UUID) ([]model.Box, error) {
	list, err := s.boxes.List(ctx, userID)
	if err != nil {
		return nil, errs.Persistence("search boxes", err)
	}
	out := []model.Box{}
	for i := range list {
		if locationID != nil && list[i].LocationID != *locationID {
			continue
		}
		if model.MatchBox(&list[i], query) {
			out = append(out, list[i])
		}
	}
	return out, nil
}

func (s *BoxServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return errs.Persistence("delete box", s.boxes.Delete(ctx, userID, id))
}
