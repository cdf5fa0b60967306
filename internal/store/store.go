// Package store defines the row-level contract for the hosted content store and the
// pieces shared by its backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shwanortho/site/internal/locale"
)

// Image types for before/after gallery photos.
const (
	ImageBefore = "before"
	ImageAfter  = "after"
)

var (
	ErrVersionConflict    = errors.New("content version conflict")
	ErrInvalidLocale      = errors.New("invalid locale")
	ErrSectionMissing     = errors.New("section is required")
	ErrInvalidImageType   = errors.New("image type must be before or after")
	ErrInvalidImageNumber = errors.New("image number must be positive")
	ErrInvalidGalleryCase = errors.New("case id must be positive")
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// ContentRow is one fragment of site copy keyed by (locale, section).
type ContentRow struct {
	ID        int64           `json:"id"`
	Locale    locale.Locale   `json:"locale"`
	Section   string          `json:"section"`
	Data      json.RawMessage `json:"data"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ContentWrite is an upsert request. ExpectedVersion 0 writes unconditionally;
// any other value writes only when the stored row carries that version.
type ContentWrite struct {
	Locale          locale.Locale
	Section         string
	Data            json.RawMessage
	ExpectedVersion int
}

// GalleryImageRow is the metadata for one before/after photo in one locale.
type GalleryImageRow struct {
	ID          int64         `json:"id"`
	CaseID      int           `json:"case_id"`
	ImageType   string        `json:"image_type"`
	ImageNumber int           `json:"image_number"`
	ImageURL    *string       `json:"image_url"`
	Description string        `json:"description"`
	Locale      locale.Locale `json:"locale"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ResolvedURL returns the stored URL, or the conventional static path when none is stored.
func (r GalleryImageRow) ResolvedURL() string {
	if r.ImageURL != nil && strings.TrimSpace(*r.ImageURL) != "" {
		return strings.TrimSpace(*r.ImageURL)
	}
	return ConventionalImagePath(r.CaseID, r.ImageType, r.ImageNumber)
}

// ConventionalImagePath is where a photo lives when no URL was stored for it.
func ConventionalImagePath(caseID int, imageType string, number int) string {
	return fmt.Sprintf("/images/gallery/case%d/%s-%d.jpg", caseID, imageType, number)
}

// GalleryImageWrite is an upsert keyed on (case_id, image_type, image_number, locale).
type GalleryImageWrite struct {
	CaseID      int
	ImageType   string
	ImageNumber int
	Description string
	Locale      locale.Locale
	ImageURL    *string
}

// GalleryImageKey selects gallery rows to delete. Zero ImageType/ImageNumber/Locale widen
// the selection to the whole case.
type GalleryImageKey struct {
	CaseID      int
	ImageType   string
	ImageNumber int
	Locale      locale.Locale
}

// Store is the narrow read/write contract over the hosted content tables.
type Store interface {
	Get(ctx context.Context, l locale.Locale, section string) ([]ContentRow, error)
	Upsert(ctx context.Context, w ContentWrite) (ContentRow, error)
	GalleryImages(ctx context.Context, caseID int) ([]GalleryImageRow, error)
	UpsertGalleryImage(ctx context.Context, w GalleryImageWrite) (GalleryImageRow, error)
	DeleteGalleryImages(ctx context.Context, key GalleryImageKey) (int, error)
	MaxGalleryCaseID(ctx context.Context) (int, error)
	Subscribe(ctx context.Context, fn func(Change)) (*Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// Validate checks a content write before it reaches a backend.
func (w ContentWrite) Validate() error {
	if !w.Locale.Valid() {
		return ErrInvalidLocale
	}
	if strings.TrimSpace(w.Section) == "" {
		return ErrSectionMissing
	}
	return nil
}

// Validate checks a gallery write before it reaches a backend.
func (w GalleryImageWrite) Validate() error {
	if w.CaseID <= 0 {
		return ErrInvalidGalleryCase
	}
	if w.ImageType != ImageBefore && w.ImageType != ImageAfter {
		return ErrInvalidImageType
	}
	if w.ImageNumber <= 0 {
		return ErrInvalidImageNumber
	}
	if !w.Locale.Valid() {
		return ErrInvalidLocale
	}
	return nil
}

// Validate checks a gallery delete selector.
func (k GalleryImageKey) Validate() error {
	if k.CaseID <= 0 {
		return ErrInvalidGalleryCase
	}
	if k.ImageType != "" && k.ImageType != ImageBefore && k.ImageType != ImageAfter {
		return ErrInvalidImageType
	}
	if k.ImageNumber < 0 {
		return ErrInvalidImageNumber
	}
	if k.Locale != "" && !k.Locale.Valid() {
		return ErrInvalidLocale
	}
	return nil
}
