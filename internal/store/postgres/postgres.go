// Package postgres implements store.Store directly against the hosted Postgres database.
// Changes arrive through LISTEN/NOTIFY on the content_changes channel.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NotifyChannel is the LISTEN channel fed by the change triggers.
const NotifyChannel = "content_changes"

// Config holds the connection settings.
type Config struct {
	DSN     string
	Migrate bool
	Logger  zerolog.Logger
}

// Store is a sqlx-backed content store. The connection and the migrations are established on
// first use, so an unreachable database fails individual calls instead of startup.
type Store struct {
	db      *sqlx.DB
	dsn     string
	log     zerolog.Logger
	migrate bool

	readyMu sync.Mutex
	ready   bool

	hub       *store.Hub
	listenMu  sync.Mutex
	listening bool
	stop      chan struct{}
	stopOnce  sync.Once
}

var _ store.Store = (*Store)(nil)

type contentRecord struct {
	ID        int64     `db:"id"`
	Locale    string    `db:"locale"`
	Section   string    `db:"section"`
	Data      []byte    `db:"data"`
	Version   int       `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

type galleryRecord struct {
	ID          int64          `db:"id"`
	CaseID      int            `db:"case_id"`
	ImageType   string         `db:"image_type"`
	ImageNumber int            `db:"image_number"`
	ImageURL    sql.NullString `db:"image_url"`
	Description string         `db:"description"`
	Locale      string         `db:"locale"`
	CreatedAt   time.Time      `db:"created_at"`
}

const contentColumns = "id, locale, section, data, version, updated_at"
const galleryColumns = "id, case_id, image_type, image_number, image_url, description, locale, created_at"

// Open prepares the connection pool and tries to connect (and migrate) once. A database that
// does not answer yet is logged and retried on the next call; only a missing DSN is an error.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, &store.StoreError{Op: "open", Err: errors.New("database url is empty")}
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, store.Wrap("open", err)
	}

	s := &Store{
		db:      db,
		dsn:     cfg.DSN,
		log:     cfg.Logger,
		migrate: cfg.Migrate,
		hub:     store.NewHub(),
		stop:    make(chan struct{}),
	}
	if err := s.ensureReady(ctx); err != nil {
		s.log.Warn().Err(err).Msg("postgres unavailable, content calls will fail until it answers")
	}
	return s, nil
}

// ensureReady connects and applies migrations once; failures are retried on the next call.
func (s *Store) ensureReady(ctx context.Context) error {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		return store.Wrap("connect", err)
	}
	if s.migrate {
		if err := Migrate(s.db.DB); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return store.Wrap("migrate", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return store.Wrap("migrate", err)
	}
	return nil
}

// Get returns rows for l, optionally narrowed to section, newest first.
func (s *Store) Get(ctx context.Context, l locale.Locale, section string) ([]store.ContentRow, error) {
	if !l.Valid() {
		return nil, store.ErrInvalidLocale
	}
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + contentColumns + " FROM content WHERE locale = $1"
	args := []any{string(l)}
	if section != "" {
		query += " AND section = $2"
		args = append(args, section)
	}
	query += " ORDER BY updated_at DESC, id DESC"

	var records []contentRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, store.Wrap("get content", err)
	}

	rows := make([]store.ContentRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.toRow())
	}
	return rows, nil
}

// Upsert writes one row keyed by (locale, section). The version bump happens in a trigger.
func (s *Store) Upsert(ctx context.Context, w store.ContentWrite) (store.ContentRow, error) {
	if err := w.Validate(); err != nil {
		return store.ContentRow{}, err
	}
	if err := s.ensureReady(ctx); err != nil {
		return store.ContentRow{}, err
	}

	data := []byte(w.Data)
	if len(data) == 0 {
		data = []byte("null")
	}

	var record contentRecord
	if w.ExpectedVersion > 0 {
		err := s.db.GetContext(ctx, &record,
			`UPDATE content SET data = $3
			 WHERE locale = $1 AND section = $2 AND version = $4
			 RETURNING `+contentColumns,
			string(w.Locale), w.Section, data, w.ExpectedVersion)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ContentRow{}, store.ErrVersionConflict
		}
		if err != nil {
			return store.ContentRow{}, store.Wrap("upsert content", err)
		}
		return record.toRow(), nil
	}

	err := s.db.GetContext(ctx, &record,
		`INSERT INTO content (locale, section, data) VALUES ($1, $2, $3)
		 ON CONFLICT (locale, section) DO UPDATE SET data = EXCLUDED.data
		 RETURNING `+contentColumns,
		string(w.Locale), w.Section, data)
	if err != nil {
		return store.ContentRow{}, store.Wrap("upsert content", err)
	}
	return record.toRow(), nil
}

// GalleryImages returns the photo rows of a case ordered by image number.
func (s *Store) GalleryImages(ctx context.Context, caseID int) ([]store.GalleryImageRow, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	var records []galleryRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT "+galleryColumns+" FROM gallery_images WHERE case_id = $1 ORDER BY image_number, image_type DESC, locale",
		caseID)
	if err != nil {
		return nil, store.Wrap("get gallery images", err)
	}

	rows := make([]store.GalleryImageRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.toRow())
	}
	return rows, nil
}

// UpsertGalleryImage writes one photo row keyed on the 4-tuple.
func (s *Store) UpsertGalleryImage(ctx context.Context, w store.GalleryImageWrite) (store.GalleryImageRow, error) {
	if err := w.Validate(); err != nil {
		return store.GalleryImageRow{}, err
	}
	if err := s.ensureReady(ctx); err != nil {
		return store.GalleryImageRow{}, err
	}

	var imageURL sql.NullString
	if w.ImageURL != nil {
		imageURL = sql.NullString{String: *w.ImageURL, Valid: true}
	}

	var record galleryRecord
	err := s.db.GetContext(ctx, &record,
		`INSERT INTO gallery_images (case_id, image_type, image_number, image_url, description, locale)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (case_id, image_type, image_number, locale)
		 DO UPDATE SET image_url = EXCLUDED.image_url, description = EXCLUDED.description
		 RETURNING `+galleryColumns,
		w.CaseID, w.ImageType, w.ImageNumber, imageURL, w.Description, string(w.Locale))
	if err != nil {
		return store.GalleryImageRow{}, store.Wrap("upsert gallery image", err)
	}
	return record.toRow(), nil
}

// DeleteGalleryImages removes the rows selected by key.
func (s *Store) DeleteGalleryImages(ctx context.Context, key store.GalleryImageKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if err := s.ensureReady(ctx); err != nil {
		return 0, err
	}

	query, args := deleteGalleryQuery(key)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, store.Wrap("delete gallery images", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("delete gallery images", err)
	}
	return int(n), nil
}

// MaxGalleryCaseID returns the largest case id in use, 0 when there are none.
func (s *Store) MaxGalleryCaseID(ctx context.Context) (int, error) {
	if err := s.ensureReady(ctx); err != nil {
		return 0, err
	}
	var maxID int
	if err := s.db.GetContext(ctx, &maxID, "SELECT COALESCE(MAX(case_id), 0) FROM gallery_images"); err != nil {
		return 0, store.Wrap("max gallery case", err)
	}
	return maxID, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	return store.Wrap("ping", s.db.PingContext(ctx))
}

// Close stops the listener, releases subscribers and closes the pool.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.hub.Close()
	return s.db.Close()
}

func deleteGalleryQuery(key store.GalleryImageKey) (string, []any) {
	clauses := []string{"case_id = $1"}
	args := []any{key.CaseID}
	if key.ImageType != "" {
		args = append(args, key.ImageType)
		clauses = append(clauses, fmt.Sprintf("image_type = $%d", len(args)))
	}
	if key.ImageNumber > 0 {
		args = append(args, key.ImageNumber)
		clauses = append(clauses, fmt.Sprintf("image_number = $%d", len(args)))
	}
	if key.Locale != "" {
		args = append(args, string(key.Locale))
		clauses = append(clauses, fmt.Sprintf("locale = $%d", len(args)))
	}
	return "DELETE FROM gallery_images WHERE " + strings.Join(clauses, " AND "), args
}

func (r contentRecord) toRow() store.ContentRow {
	return store.ContentRow{
		ID:        r.ID,
		Locale:    locale.Locale(r.Locale),
		Section:   r.Section,
		Data:      json.RawMessage(r.Data),
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r galleryRecord) toRow() store.GalleryImageRow {
	row := store.GalleryImageRow{
		ID:          r.ID,
		CaseID:      r.CaseID,
		ImageType:   r.ImageType,
		ImageNumber: r.ImageNumber,
		Description: r.Description,
		Locale:      locale.Locale(r.Locale),
		CreatedAt:   r.CreatedAt,
	}
	if r.ImageURL.Valid {
		url := r.ImageURL.String
		row.ImageURL = &url
	}
	return row
}
