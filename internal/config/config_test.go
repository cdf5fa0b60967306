package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		// t.Setenv 负责测试结束后恢复原值
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "PORT", "LISTEN_ADDR", "STORE_DRIVER", "CACHE_TTL", "STORE_TIMEOUT", "SUPABASE_URL", "SUPABASE_ANON_KEY")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "8080" || cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen settings %q %q", cfg.Port, cfg.ListenAddr)
	}
	if cfg.StoreDriver != StoreREST {
		t.Fatalf("expected rest driver by default, got %q", cfg.StoreDriver)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.StoreTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.CacheTTL, cfg.StoreTimeout)
	}
	if cfg.RemoteConfigured() {
		t.Fatal("remote store should not be configured without url and key")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	content := "SUPABASE_URL=https://example.supabase.co/\nSUPABASE_ANON_KEY=anon\nCACHE_TTL=30s\nMIRROR_TO_LOCAL=true\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	unsetEnv(t, "SUPABASE_URL", "SUPABASE_ANON_KEY", "CACHE_TTL", "MIRROR_TO_LOCAL", "STORE_DRIVER")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SupabaseURL != "https://example.supabase.co" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.SupabaseURL)
	}
	if !cfg.RemoteConfigured() || !cfg.MirrorToLocal || cfg.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for postgres without DATABASE_URL")
	}
}
