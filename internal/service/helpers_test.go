package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
	"github.com/shwanortho/site/internal/store/sqlstore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errStoreDown = &store.StoreError{Op: "get content", Err: errors.New("connection refused")}

func setupSQLStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	st := sqlstore.New(gdb)
	t.Cleanup(func() {
		st.Close()
		sqlDB.Close()
	})
	return st
}

// stubStore records calls. Methods it does not override panic through the nil embedded Store.
type stubStore struct {
	store.Store

	mu        sync.Mutex
	gets      []locale.Locale
	upserts   []store.ContentWrite
	rows      map[locale.Locale][]store.ContentRow
	getErr    error
	upsertErr func(store.ContentWrite) error
}

func (s *stubStore) Get(_ context.Context, l locale.Locale, _ string) ([]store.ContentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = append(s.gets, l)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.rows[l], nil
}

func (s *stubStore) Upsert(_ context.Context, w store.ContentWrite) (store.ContentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, w)
	if s.upsertErr != nil {
		if err := s.upsertErr(w); err != nil {
			return store.ContentRow{}, err
		}
	}
	return store.ContentRow{Locale: w.Locale, Section: w.Section, Data: w.Data, Version: w.ExpectedVersion + 1}, nil
}

func (s *stubStore) Ping(context.Context) error {
	return s.getErr
}

func (s *stubStore) getCalls() []locale.Locale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]locale.Locale(nil), s.gets...)
}
