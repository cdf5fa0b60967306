package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/handler"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store/sqlstore"
)

func setupTestRouter(t *testing.T, staticDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	st := sqlstore.New(gdb)
	t.Cleanup(func() {
		st.Close()
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	local := localfile.New(t.TempDir())
	log := zerolog.Nop()
	api := handler.NewAPI(handler.Deps{
		DB:      gdb,
		Store:   st,
		Content: service.NewContentService(st, local, nil, log),
		Sync:    service.NewSyncService(st, local, nil, service.SyncOptions{}, log),
		Gallery: service.NewGalleryService(st, staticDir, nil, log),
		Local:   local,
		Driver:  "sqlite",
		Logger:  log,
	})

	return SetupRouter(api, Options{
		SessionSecret: "test-secret",
		TemplateDir:   filepath.Join("..", "..", "web", "template"),
		StaticDir:     staticDir,
		Logger:        log,
	})
}

func TestSetupRouterServesGalleryImages(t *testing.T) {
	staticDir := t.TempDir()
	dir := filepath.Join(staticDir, "images", "gallery", "case1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	fileContent := []byte("not really a jpeg")
	if err := os.WriteFile(filepath.Join(dir, "before-1.jpg"), fileContent, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	r := setupTestRouter(t, staticDir)

	req := httptest.NewRequest(http.MethodGet, "/images/gallery/case1/before-1.jpg", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != string(fileContent) {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
}

func TestSetupRouterRendersTemplates(t *testing.T) {
	r := setupTestRouter(t, t.TempDir())

	tests := []struct {
		name     string
		path     string
		status   int
		contains []string
	}{
		{name: "login", path: "/admin/login", status: http.StatusOK, contains: []string{`action="/admin/login"`, "Admin Login"}},
		{name: "english site", path: "/en", status: http.StatusOK, contains: []string{`dir="ltr"`, "<strong>age 7</strong>", `data-content-source="default"`}},
		{name: "ping", path: "/ping", status: http.StatusOK, contains: []string{"pong"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(rr.Body.String(), want) {
					t.Fatalf("expected body to contain %q, got %s", want, rr.Body.String())
				}
			}
		})
	}
}

func TestSetupRouterAssignsRequestID(t *testing.T) {
	r := setupTestRouter(t, t.TempDir())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestSetupRouterArabicLoginIsLocalized(t *testing.T) {
	r := setupTestRouter(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/admin/login?lang=ar", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, `dir="rtl"`) || !strings.Contains(body, "تسجيل دخول المشرف") {
		t.Fatalf("expected arabic login page, got %s", body)
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "site_lang=ar") {
		t.Fatalf("expected language cookie, got %q", rr.Header().Get("Set-Cookie"))
	}
}
