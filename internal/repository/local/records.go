package local

import (
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
)

type locationRecord struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"createdAt"`
}

func toLocationRecord(l *model.Location) locationRecord {
	return locationRecord{
		ID:          l.ID,
		UserID:      l.UserID,
		Name:        l.Name,
		Description: l.Description,
		CreatedAt:   formatTime(l.CreatedAt),
	}
}

func (r locationRecord) model() model.Location {
	return model.Location{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

type boxRecord struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	LocationID  uuid.UUID `json:"locationId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	QRCode      string    `json:"qrCode"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Contents    []string  `json:"contents"`
	AIAnalysis  string    `json:"aiAnalysis,omitempty"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

func toBoxRecord(b *model.Box) boxRecord {
	contents := append([]string{}, b.Contents...)
	return boxRecord{
		ID:          b.ID,
		UserID:      b.UserID,
		LocationID:  b.LocationID,
		Name:        b.Name,
		Description: b.Description,
		QRCode:      b.QRCode,
		ImageURL:    b.ImageURL,
		Contents:    contents,
		AIAnalysis:  b.AIAnalysis,
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

func (r boxRecord) model() model.Box {
	contents := append([]string{}, r.Contents...)
	return model.Box{
		ID:          r.ID,
		UserID:      r.UserID,
		LocationID:  r.LocationID,
		Name:        r.Name,
		Description: r.Description,
		QRCode:      r.QRCode,
		ImageURL:    r.ImageURL,
		Contents:    contents,
		AIAnalysis:  r.AIAnalysis,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}
