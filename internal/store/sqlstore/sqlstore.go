// Package sqlstore implements store.Store on the local gorm/sqlite database. It backs local
// development and tests, and publishes changes through an in-process hub.
package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a gorm-backed content store.
type Store struct {
	db  *gorm.DB
	hub *store.Hub
	now func() time.Time
}

// New wraps an already migrated gorm connection. The caller keeps ownership of gdb.
func New(gdb *gorm.DB) *Store {
	return &Store{
		db:  gdb,
		hub: store.NewHub(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ store.Store = (*Store)(nil)

// Get returns rows for l, optionally narrowed to section, newest first.
func (s *Store) Get(ctx context.Context, l locale.Locale, section string) ([]store.ContentRow, error) {
	if !l.Valid() {
		return nil, store.ErrInvalidLocale
	}

	query := s.db.WithContext(ctx).Where("locale = ?", string(l))
	if section != "" {
		query = query.Where("section = ?", section)
	}

	var records []db.ContentRow
	if err := query.Order("updated_at desc").Order("id desc").Find(&records).Error; err != nil {
		return nil, store.Wrap("get content", err)
	}

	rows := make([]store.ContentRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, toContentRow(record))
	}
	return rows, nil
}

// Upsert writes one row keyed by (locale, section) and bumps its version.
func (s *Store) Upsert(ctx context.Context, w store.ContentWrite) (store.ContentRow, error) {
	if err := w.Validate(); err != nil {
		return store.ContentRow{}, err
	}

	data := normalizeJSON(w.Data)
	now := s.now()
	var record db.ContentRow

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if w.ExpectedVersion > 0 {
			res := tx.Model(&db.ContentRow{}).
				Where("locale = ? AND section = ? AND version = ?", string(w.Locale), w.Section, w.ExpectedVersion).
				Updates(map[string]interface{}{
					"data":       data,
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return store.ErrVersionConflict
			}
		} else {
			insert := db.ContentRow{
				Locale:    string(w.Locale),
				Section:   w.Section,
				Data:      data,
				Version:   1,
				UpdatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "locale"}, {Name: "section"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"data":       data,
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				}),
			}).Create(&insert).Error; err != nil {
				return err
			}
		}
		return tx.Where("locale = ? AND section = ?", string(w.Locale), w.Section).First(&record).Error
	})
	if err != nil {
		return store.ContentRow{}, store.Wrap("upsert content", err)
	}

	changeType := store.ChangeUpdate
	if record.Version == 1 {
		changeType = store.ChangeInsert
	}
	s.hub.Publish(store.Change{
		Table:   store.TableContent,
		Type:    changeType,
		Locale:  w.Locale,
		Section: w.Section,
		At:      now,
	})
	return toContentRow(record), nil
}

// GalleryImages returns every photo row of a case ordered by image number.
func (s *Store) GalleryImages(ctx context.Context, caseID int) ([]store.GalleryImageRow, error) {
	var records []db.GalleryImage
	if err := s.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("image_number asc").
		Order("image_type desc").
		Order("locale asc").
		Find(&records).Error; err != nil {
		return nil, store.Wrap("get gallery images", err)
	}

	rows := make([]store.GalleryImageRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, toGalleryRow(record))
	}
	return rows, nil
}

// UpsertGalleryImage writes one photo row keyed by (case_id, image_type, image_number, locale).
func (s *Store) UpsertGalleryImage(ctx context.Context, w store.GalleryImageWrite) (store.GalleryImageRow, error) {
	if err := w.Validate(); err != nil {
		return store.GalleryImageRow{}, err
	}

	insert := db.GalleryImage{
		CaseID:      w.CaseID,
		ImageType:   w.ImageType,
		ImageNumber: w.ImageNumber,
		ImageURL:    w.ImageURL,
		Description: w.Description,
		Locale:      string(w.Locale),
		CreatedAt:   s.now(),
	}

	var record db.GalleryImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "case_id"}, {Name: "image_type"}, {Name: "image_number"}, {Name: "locale"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"description": w.Description,
				"image_url":   w.ImageURL,
			}),
		}).Create(&insert).Error; err != nil {
			return err
		}
		return tx.Where("case_id = ? AND image_type = ? AND image_number = ? AND locale = ?",
			w.CaseID, w.ImageType, w.ImageNumber, string(w.Locale)).First(&record).Error
	})
	if err != nil {
		return store.GalleryImageRow{}, store.Wrap("upsert gallery image", err)
	}

	s.hub.Publish(store.Change{
		Table:  store.TableGalleryImages,
		Type:   store.ChangeUpdate,
		Locale: w.Locale,
		CaseID: w.CaseID,
	})
	return toGalleryRow(record), nil
}

// DeleteGalleryImages removes the rows selected by key and returns how many went.
func (s *Store) DeleteGalleryImages(ctx context.Context, key store.GalleryImageKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).Where("case_id = ?", key.CaseID)
	if key.ImageType != "" {
		query = query.Where("image_type = ?", key.ImageType)
	}
	if key.ImageNumber > 0 {
		query = query.Where("image_number = ?", key.ImageNumber)
	}
	if key.Locale != "" {
		query = query.Where("locale = ?", string(key.Locale))
	}

	res := query.Delete(&db.GalleryImage{})
	if res.Error != nil {
		return 0, store.Wrap("delete gallery images", res.Error)
	}

	if res.RowsAffected > 0 {
		s.hub.Publish(store.Change{
			Table:  store.TableGalleryImages,
			Type:   store.ChangeDelete,
			Locale: key.Locale,
			CaseID: key.CaseID,
		})
	}
	return int(res.RowsAffected), nil
}

// MaxGalleryCaseID returns the largest case id in use, 0 when there are none.
func (s *Store) MaxGalleryCaseID(ctx context.Context) (int, error) {
	var maxID int
	if err := s.db.WithContext(ctx).Model(&db.GalleryImage{}).
		Select("COALESCE(MAX(case_id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, store.Wrap("max gallery case", err)
	}
	return maxID, nil
}

// Subscribe registers fn for every write made through this store.
func (s *Store) Subscribe(ctx context.Context, fn func(store.Change)) (*store.Subscription, error) {
	return s.hub.Subscribe(ctx, fn)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.Wrap("ping", err)
	}
	return store.Wrap("ping", sqlDB.PingContext(ctx))
}

// Close releases subscribers. The gorm connection stays open for its owner.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func toContentRow(record db.ContentRow) store.ContentRow {
	return store.ContentRow{
		ID:        record.ID,
		Locale:    locale.Locale(record.Locale),
		Section:   record.Section,
		Data:      json.RawMessage(record.Data),
		Version:   record.Version,
		UpdatedAt: record.UpdatedAt,
	}
}

func toGalleryRow(record db.GalleryImage) store.GalleryImageRow {
	return store.GalleryImageRow{
		ID:          record.ID,
		CaseID:      record.CaseID,
		ImageType:   record.ImageType,
		ImageNumber: record.ImageNumber,
		ImageURL:    record.ImageURL,
		Description: record.Description,
		Locale:      locale.Locale(record.Locale),
		CreatedAt:   record.CreatedAt,
	}
}

func normalizeJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
