package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrGalleryPhotoMissing = errors.New("gallery photo not found")
	ErrGalleryUploadEmpty  = errors.New("gallery upload is empty")
	ErrGalleryUploadFormat = errors.New("gallery upload is not a supported image")
)

const (
	maxGalleryWidth    = 1600
	galleryJPEGQuality = 85
	maxGalleryUpload   = 20 << 20
)

// GalleryService manages before/after photo metadata. Rows in gallery_images are the only
// record of a case's photos; pages.gallery.cases keeps just id and title.
type GalleryService struct {
	store     store.Store
	staticDir string
	cache     *DictionaryCache
	log       zerolog.Logger
}

// PhotoInput is one photo slot with its descriptions per locale.
type PhotoInput struct {
	CaseID       int
	ImageType    string
	ImageNumber  int
	ImageURL     *string
	Descriptions map[locale.Locale]string
}

// Photo is a photo prepared for rendering in one locale.
type Photo struct {
	Type        string
	Number      int
	URL         string
	Description string
}

// ImageProbe reports whether a photo's file is present and its dimensions.
type ImageProbe struct {
	ImageType   string `json:"image_type"`
	ImageNumber int    `json:"image_number"`
	URL         string `json:"url"`
	Local       bool   `json:"local"`
	Exists      bool   `json:"exists"`
	Format      string `json:"format,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MigrationReport summarises MigrateLegacyCases.
type MigrationReport struct {
	Cases   int                                     `json:"cases"`
	Rows    int                                     `json:"rows"`
	Cleaned map[locale.Locale]dictionary.Dictionary `json:"-"`
}

// NewGalleryService creates a GalleryService. staticDir is where conventional image paths live.
func NewGalleryService(st store.Store, staticDir string, cache *DictionaryCache, log zerolog.Logger) *GalleryService {
	return &GalleryService{store: st, staticDir: staticDir, cache: cache, log: log}
}

// Images returns every row of a case.
func (s *GalleryService) Images(ctx context.Context, caseID int) ([]store.GalleryImageRow, error) {
	if caseID <= 0 {
		return nil, store.ErrInvalidGalleryCase
	}
	return s.store.GalleryImages(ctx, caseID)
}

// Photos returns the photos of a case in l, ordered by number with before ahead of after.
// A slot without a row in l borrows the description of the other locale.
func (s *GalleryService) Photos(ctx context.Context, caseID int, l locale.Locale) ([]Photo, error) {
	rows, err := s.Images(ctx, caseID)
	if err != nil {
		return nil, err
	}

	type slot struct {
		imageType string
		number    int
	}
	bySlot := map[slot]Photo{}
	for _, row := range rows {
		key := slot{row.ImageType, row.ImageNumber}
		existing, seen := bySlot[key]
		if seen && row.Locale != l {
			continue
		}
		if seen && existing.Description != "" && row.Description == "" {
			continue
		}
		bySlot[key] = Photo{Type: row.ImageType, Number: row.ImageNumber, URL: row.ResolvedURL(), Description: row.Description}
	}

	photos := make([]Photo, 0, len(bySlot))
	for _, photo := range bySlot {
		photos = append(photos, photo)
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].Number != photos[j].Number {
			return photos[i].Number < photos[j].Number
		}
		return photos[i].Type == store.ImageBefore && photos[j].Type != store.ImageBefore
	})
	return photos, nil
}

// SavePhoto upserts one row per locale present in input.Descriptions.
func (s *GalleryService) SavePhoto(ctx context.Context, input PhotoInput) ([]store.GalleryImageRow, error) {
	if len(input.Descriptions) == 0 {
		input.Descriptions = map[locale.Locale]string{locale.English: ""}
	}

	for l := range input.Descriptions {
		if !l.Valid() {
			return nil, store.ErrInvalidLocale
		}
	}

	rows := make([]store.GalleryImageRow, 0, len(input.Descriptions))
	for _, l := range locale.Supported {
		description, ok := input.Descriptions[l]
		if !ok {
			continue
		}
		row, err := s.store.UpsertGalleryImage(ctx, store.GalleryImageWrite{
			CaseID:      input.CaseID,
			ImageType:   input.ImageType,
			ImageNumber: input.ImageNumber,
			Description: sanitizeString(strings.TrimSpace(description)),
			Locale:      l,
			ImageURL:    trimmedURL(input.ImageURL),
		})
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	s.cache.Invalidate()
	return rows, nil
}

// DeletePhoto removes one photo slot in both locales.
func (s *GalleryService) DeletePhoto(ctx context.Context, caseID int, imageType string, number int) (int, error) {
	if number <= 0 {
		return 0, store.ErrInvalidImageNumber
	}
	if imageType != store.ImageBefore && imageType != store.ImageAfter {
		return 0, store.ErrInvalidImageType
	}
	n, err := s.store.DeleteGalleryImages(ctx, store.GalleryImageKey{CaseID: caseID, ImageType: imageType, ImageNumber: number})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrGalleryPhotoMissing
	}
	s.cache.Invalidate()
	return n, nil
}

// DeleteCase removes every photo row of a case.
func (s *GalleryService) DeleteCase(ctx context.Context, caseID int) (int, error) {
	n, err := s.store.DeleteGalleryImages(ctx, store.GalleryImageKey{CaseID: caseID})
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate()
	return n, nil
}

// NextCaseID returns an unused case id.
func (s *GalleryService) NextCaseID(ctx context.Context) (int, error) {
	maxID, err := s.store.MaxGalleryCaseID(ctx)
	if err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

// ProbeImages checks the file behind every photo slot of a case. Only site-relative URLs
// can be checked; anything else is reported as not local.
func (s *GalleryService) ProbeImages(ctx context.Context, caseID int) ([]ImageProbe, error) {
	rows, err := s.Images(ctx, caseID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	probes := make([]ImageProbe, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprintf("%s-%d", row.ImageType, row.ImageNumber)
		if seen[key] {
			continue
		}
		seen[key] = true
		probes = append(probes, s.probe(row.ImageType, row.ImageNumber, row.ResolvedURL()))
	}
	return probes, nil
}

func (s *GalleryService) probe(imageType string, number int, url string) ImageProbe {
	result := ImageProbe{ImageType: imageType, ImageNumber: number, URL: url}
	path, ok := s.localPath(url)
	if !ok {
		return result
	}
	result.Local = true

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			result.Error = err.Error()
		}
		return result
	}
	defer file.Close()
	result.Exists = true

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Format = format
	result.Width = cfg.Width
	result.Height = cfg.Height
	return result
}

// StoreUpload decodes an uploaded photo, scales it down to a sane width and writes it as
// JPEG to the conventional path of the slot.
func (s *GalleryService) StoreUpload(caseID int, imageType string, number int, src io.Reader) (ImageProbe, error) {
	if caseID <= 0 {
		return ImageProbe{}, store.ErrInvalidGalleryCase
	}
	if imageType != store.ImageBefore && imageType != store.ImageAfter {
		return ImageProbe{}, store.ErrInvalidImageType
	}
	if number <= 0 {
		return ImageProbe{}, store.ErrInvalidImageNumber
	}

	data, err := io.ReadAll(io.LimitReader(src, maxGalleryUpload))
	if err != nil {
		return ImageProbe{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return ImageProbe{}, ErrGalleryUploadEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageProbe{}, fmt.Errorf("%w: %v", ErrGalleryUploadFormat, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxGalleryWidth {
		height := bounds.Dy() * maxGalleryWidth / bounds.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, maxGalleryWidth, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: galleryJPEGQuality}); err != nil {
		return ImageProbe{}, fmt.Errorf("encode jpeg: %w", err)
	}

	url := store.ConventionalImagePath(caseID, imageType, number)
	path, _ := s.localPath(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ImageProbe{}, fmt.Errorf("create gallery dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return ImageProbe{}, fmt.Errorf("write gallery image: %w", err)
	}

	return s.probe(imageType, number, url), nil
}

// MigrateLegacyCases moves photos embedded in pages.gallery.cases into gallery rows. The
// slot number is the photo's position; the type is "after" when the English description
// mentions it. Cleaned copies of the dictionaries are returned for syncing.
func (s *GalleryService) MigrateLegacyCases(ctx context.Context, en, ar dictionary.Dictionary) (MigrationReport, error) {
	report := MigrationReport{Cleaned: map[locale.Locale]dictionary.Dictionary{}}
	enPhotos := en.LegacyGalleryPhotos()
	arPhotos := ar.LegacyGalleryPhotos()

	ids := make([]int, 0, len(enPhotos))
	for id := range enPhotos {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if id <= 0 {
			continue
		}
		report.Cases++
		for i, photo := range enPhotos[id] {
			imageType := legacyImageType(photo.Description)
			input := PhotoInput{
				CaseID:       id,
				ImageType:    imageType,
				ImageNumber:  i + 1,
				ImageURL:     legacyURL(photo, imageType, id, i+1),
				Descriptions: map[locale.Locale]string{locale.English: photo.Description},
			}
			if i < len(arPhotos[id]) {
				input.Descriptions[locale.Arabic] = arPhotos[id][i].Description
			}
			rows, err := s.SavePhoto(ctx, input)
			report.Rows += len(rows)
			if err != nil {
				return report, fmt.Errorf("migrate case %d photo %d: %w", id, i+1, err)
			}
		}
	}

	for l, doc := range map[locale.Locale]dictionary.Dictionary{locale.English: en, locale.Arabic: ar} {
		if doc == nil {
			continue
		}
		cleaned := doc.Clone()
		if cases := cleaned.GalleryCases(); cases != nil {
			cleaned.SetGalleryCases(cases)
		}
		report.Cleaned[l] = cleaned
	}

	s.log.Info().Int("cases", report.Cases).Int("rows", report.Rows).Msg("legacy gallery cases migrated")
	return report, nil
}

func legacyImageType(description string) string {
	lower := strings.ToLower(description)
	if strings.Contains(lower, "after") || strings.Contains(description, "بعد") {
		return store.ImageAfter
	}
	return store.ImageBefore
}

// legacyURL keeps an embedded URL only when it differs from the conventional path.
func legacyURL(photo dictionary.LegacyPhoto, imageType string, caseID, number int) *string {
	url := photo.Before
	if imageType == store.ImageAfter {
		url = photo.After
	}
	url = strings.TrimSpace(url)
	if url == "" || url == store.ConventionalImagePath(caseID, imageType, number) {
		return nil
	}
	return &url
}

func (s *GalleryService) localPath(url string) (string, bool) {
	if !strings.HasPrefix(url, "/") || strings.HasPrefix(url, "//") {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(url))
	if strings.Contains(clean, "..") {
		return "", false
	}
	root := s.staticDir
	if root == "" {
		root = "web/static"
	}
	return filepath.Join(root, clean), true
}

func trimmedURL(url *string) *string {
	if url == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*url)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
