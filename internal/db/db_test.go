package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitCreatesParentDirAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "site.db")

	gdb, err := Init(path)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	for _, model := range []any{&User{}, &ContentRow{}, &GalleryImage{}} {
		if !gdb.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
}

func TestInitRejectsFileAsParent(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := Init(filepath.Join(parent, "site.db")); err == nil {
		t.Fatal("expected error when parent is a file")
	}
}
