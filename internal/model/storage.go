package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Location is a named storage area that boxes are assigned to.
type Location struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// LocationUpdate carries optional location changes; nil fields are left untouched.
type LocationUpdate struct {
	Name        *string
	Description *string
}

// Box is a storage container with free-text contents and a derived QR payload.
type Box struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	LocationID  uuid.UUID
	Name        string
	Description string
	QRCode      string
	ImageURL    string
	Contents    []string // ordered, replaced wholesale on update
	AIAnalysis  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BoxUpdate carries the scan/update flow changes. Contents always replace the stored list;
// nil pointer fields are left untouched.
type BoxUpdate struct {
	Contents    []string
	Name        *string
	Description *string
	ImageURL    *string
	LocationID  *uuid.UUID
	AIAnalysis  *string
}

// MatchBox reports whether query is a case-insensitive substring of the box name,
// description or any content item. An empty query matches every box.
func MatchBox(b *Box, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(b.Name), q) || strings.Contains(strings.ToLower(b.Description), q) {
		return true
	}
	for _, item := range b.Contents {
		if strings.Contains(strings.ToLower(item), q) {
			return true
		}
	}
	return false
}

// NormalizeContents trims items and drops empty ones, keeping order.
func NormalizeContents(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// SplitContents parses the comma-separated contents field of the scan form.
func SplitContents(s string) []string {
	return NormalizeContents(strings.Split(s, ","))
}
