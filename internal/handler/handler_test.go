package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/handler"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/router"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
	"github.com/shwanortho/site/internal/store/sqlstore"
)

var ginOnce sync.Once

type stubHTMLRender struct {
	mu   sync.Mutex
	last *stubHTMLInstance
}

type stubHTMLInstance struct {
	name string
	data interface{}
}

func (r *stubHTMLRender) Instance(name string, data interface{}) render.Render {
	inst := &stubHTMLInstance{name: name, data: data}
	r.mu.Lock()
	r.last = inst
	r.mu.Unlock()
	return inst
}

func (r *stubHTMLRender) lastRendered() *stubHTMLInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *stubHTMLInstance) Render(http.ResponseWriter) error {
	return nil
}

func (r *stubHTMLInstance) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

type testServer struct {
	engine *gin.Engine
	store  *sqlstore.Store
	local  *localfile.Source
	html   *stubHTMLRender
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	gdb, err := db.Open(fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.EnsureUser(gdb, "admin", "s3cret"); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	st := sqlstore.New(gdb)
	local := localfile.New(t.TempDir())
	staticDir := t.TempDir()
	cache := service.NewDictionaryCache(time.Minute)
	log := zerolog.Nop()

	api := handler.NewAPI(handler.Deps{
		DB:      gdb,
		Store:   st,
		Content: service.NewContentService(st, local, cache, log),
		Sync:    service.NewSyncService(st, local, cache, service.SyncOptions{}, log),
		Gallery: service.NewGalleryService(st, staticDir, cache, log),
		Local:   local,
		Driver:  "sqlite",
		Logger:  log,
	})

	html := &stubHTMLRender{}
	r := router.SetupRouter(api, router.Options{SessionSecret: "test-secret", StaticDir: staticDir, Logger: log})
	r.HTMLRender = html

	t.Cleanup(func() {
		st.Close()
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &testServer{engine: r, store: st, local: local, html: html}
}

func (s *testServer) login(t *testing.T) []*http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"s3cret"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin" {
		t.Fatalf("login failed: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	return w.Result().Cookies()
}

func (s *testServer) do(t *testing.T, cookies []*http.Cookie, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not a json object: %v (%s)", err, w.Body.String())
	}
	return payload
}

func TestAdminRoutesRequireSession(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, nil, http.MethodGet, "/admin/api/content?locale=en", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for api without session, got %d", w.Code)
	}

	w = s.do(t, nil, http.MethodGet, "/admin", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := setupServer(t)

	form := url.Values{"username": {"admin"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if last := s.html.lastRendered(); last == nil || last.name != "admin/login.html" {
		t.Fatalf("expected login template, got %#v", last)
	}
}

func TestEditorRendersAfterLogin(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodGet, "/admin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	last := s.html.lastRendered()
	data, ok := last.data.(gin.H)
	if !ok || last.name != "admin/editor.html" {
		t.Fatalf("unexpected render %#v", last)
	}
	if data["online"] != true || data["driver"] != "sqlite" {
		t.Fatalf("unexpected editor data %#v", data)
	}
}

func TestContentSyncAndRead(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	body := `{"locale":"en","data":{"seo":{"title":"Clinic"},"navbar":{"home":"Home"},"pages":{"faq":{"questions":[]}}}}`
	w := s.do(t, cookies, http.MethodPut, "/admin/api/content", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	payload := decodeBody(t, w)
	if payload["success"] != true || payload["message"] != "Full content updated for en" {
		t.Fatalf("unexpected response %v", payload)
	}
	if _, err := time.Parse(time.RFC3339, payload["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp is not RFC3339: %v", err)
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/content?locale=en", "")
	if w.Code != http.StatusOK || w.Header().Get(handler.ContentSourceHeader) != "remote" {
		t.Fatalf("unexpected read: %d %q", w.Code, w.Header().Get(handler.ContentSourceHeader))
	}
	doc := decodeBody(t, w)
	if doc["navbar"].(map[string]any)["home"] != "Home" {
		t.Fatalf("unexpected dictionary %v", doc)
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/content?locale=en&section=faq", "")
	if strings.TrimSpace(w.Body.String()) != `{"questions":[]}` {
		t.Fatalf("unexpected section body %s", w.Body.String())
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/content?locale=en&section=about", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "null" {
		t.Fatalf("missing section should be null, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/content/versions?locale=en", "")
	versions := decodeBody(t, w)
	if versions["navbar"] != 1.0 || versions["faq"] != 1.0 || versions["seo"] != 1.0 {
		t.Fatalf("unexpected versions %v", versions)
	}
}

func TestEmptyContentReadsAsObject(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodGet, "/admin/api/content?locale=ar", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Fatalf("empty store should read as {}, got %d %s", w.Code, w.Body.String())
	}
}

func TestContentRejectsBadLocale(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/admin/api/content?locale=fr", ""},
		{http.MethodGet, "/admin/api/content", ""},
		{http.MethodPut, "/admin/api/content", `{"locale":"de","data":{}}`},
		{http.MethodPost, "/admin/api/content", `{"locale":"","section":"faq","data":{}}`},
		{http.MethodGet, "/admin/api/local-content?locale=xx", ""},
	}
	for _, tt := range tests {
		w := s.do(t, cookies, tt.method, tt.target, tt.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", tt.method, tt.target, w.Code)
		}
		if decodeBody(t, w)["error"] != "Invalid or missing locale parameter" {
			t.Fatalf("%s %s: unexpected error body %s", tt.method, tt.target, w.Body.String())
		}
	}
}

func TestPostContentValidation(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodPost, "/admin/api/content", `{"locale":"ar","data":{"a":1}}`)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "Missing section parameter" {
		t.Fatalf("expected missing section error, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, cookies, http.MethodPost, "/admin/api/content", `{"locale":"ar","section":"seo"}`)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "Missing data parameter" {
		t.Fatalf("expected missing data error, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, cookies, http.MethodPost, "/admin/api/content", `{"locale":"ar","section":"seo","data":{"title":"عيادة"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
}

func TestStaleVersionReturnsConflict(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	for _, title := range []string{"A", "B"} {
		w := s.do(t, cookies, http.MethodPost, "/admin/api/content", `{"locale":"en","section":"seo","data":{"title":"`+title+`"}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("seed write failed: %d", w.Code)
		}
	}

	w := s.do(t, cookies, http.MethodPost, "/admin/api/content", `{"locale":"en","section":"seo","data":{"title":"C"},"version":1}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}

	body := `{"locale":"en","data":{"seo":{"title":"D"},"navbar":{},"pages":{}},"versions":{"seo":1}}`
	w = s.do(t, cookies, http.MethodPut, "/admin/api/content", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 from sync, got %d %s", w.Code, w.Body.String())
	}
}

func TestSyncAllLocales(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	body := `{"en":{"navbar":{"home":"Home"},"pages":{}},"ar":{"navbar":{"home":"الرئيسية"},"pages":{}}}`
	w := s.do(t, cookies, http.MethodPut, "/admin/api/content/all", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if results := decodeBody(t, w)["results"].([]any); len(results) != 2 {
		t.Fatalf("expected a result per locale, got %v", results)
	}

	w = s.do(t, cookies, http.MethodPut, "/admin/api/content/all", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestLocalContentBackups(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodGet, "/admin/api/local-content?locale=ar", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing file, got %d", w.Code)
	}

	body := `{"locale":"ar","data":{"navbar":{"home":"الرئيسية"},"pages":{}}}`
	w = s.do(t, cookies, http.MethodPost, "/admin/api/local-content", body)
	if w.Code != http.StatusOK || decodeBody(t, w)["backup"] != "" {
		t.Fatalf("first write should not back up: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, cookies, http.MethodPost, "/admin/api/local-content", body)
	if backup, _ := decodeBody(t, w)["backup"].(string); !strings.Contains(backup, "ar.backup.") {
		t.Fatalf("second write should report a backup, got %s", w.Body.String())
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/local-content?locale=ar", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["navbar"].(map[string]any)["home"] != "الرئيسية" {
		t.Fatalf("unexpected local read %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, cookies, http.MethodPost, "/admin/api/local-content", `{"locale":"ar","data":{"pages":{}}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid dictionary should be rejected, got %d", w.Code)
	}
}

func TestGalleryEndpoints(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodPost, "/admin/api/gallery/cases", "")
	if w.Code != http.StatusCreated || decodeBody(t, w)["case_id"] != 1.0 {
		t.Fatalf("unexpected case allocation %d %s", w.Code, w.Body.String())
	}

	body := `{"image_type":"before","image_number":1,"descriptions":{"en":"Before","ar":"قبل"}}`
	w = s.do(t, cookies, http.MethodPut, "/admin/api/gallery/1/images", body)
	if w.Code != http.StatusOK {
		t.Fatalf("save failed %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, cookies, http.MethodPut, "/admin/api/gallery/1/images", `{"image_type":"during","image_number":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad image type, got %d", w.Code)
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/gallery/1", "")
	if images := decodeBody(t, w)["images"].([]any); len(images) != 2 {
		t.Fatalf("expected 2 rows, got %v", images)
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/gallery/1/probe", "")
	probes := decodeBody(t, w)["images"].([]any)
	if len(probes) != 1 || probes[0].(map[string]any)["exists"] != false {
		t.Fatalf("unexpected probes %v", probes)
	}

	w = s.do(t, cookies, http.MethodDelete, "/admin/api/gallery/1/images/before/1", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["deleted"] != 2.0 {
		t.Fatalf("unexpected delete %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, cookies, http.MethodDelete, "/admin/api/gallery/1/images/before/1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing photo, got %d", w.Code)
	}

	w = s.do(t, cookies, http.MethodGet, "/admin/api/gallery/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad case id, got %d", w.Code)
	}
}

func TestStatusReportsOnline(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, cookies, http.MethodGet, "/admin/api/status", "")
	payload := decodeBody(t, w)
	if payload["online"] != true || payload["store"] != "sqlite" {
		t.Fatalf("unexpected status %v", payload)
	}
}

func TestPublicSiteResolvesDictionary(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ar-IQ,ar;q=0.9")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/ar" {
		t.Fatalf("expected redirect to /ar, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = s.do(t, nil, http.MethodGet, "/fr", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/en" {
		t.Fatalf("unknown locale should redirect to /en, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = s.do(t, nil, http.MethodGet, "/ar", "")
	if w.Code != http.StatusOK || w.Header().Get(handler.ContentSourceHeader) != "default" {
		t.Fatalf("empty store should serve the default, got %d %q", w.Code, w.Header().Get(handler.ContentSourceHeader))
	}
	data := s.html.lastRendered().data.(gin.H)
	if data["dir"] != "ltr" || data["locale"] != "ar" || data["servedLocale"] != "en" {
		t.Fatalf("unexpected page data %v", data)
	}
	if n := reflect.ValueOf(data["faqs"]).Len(); n != 2 {
		t.Fatalf("expected the default faqs to be rendered, got %d", n)
	}

	if _, err := s.local.Save(locale.English, dictionary.Dictionary{
		"navbar": map[string]any{"home": "Local"},
		"pages":  map[string]any{},
	}); err != nil {
		t.Fatalf("seed local file: %v", err)
	}
	w = s.do(t, nil, http.MethodGet, "/en", "")
	if w.Header().Get(handler.ContentSourceHeader) != "local" {
		t.Fatalf("expected local source, got %q", w.Header().Get(handler.ContentSourceHeader))
	}
	data = s.html.lastRendered().data.(gin.H)
	if data["navbar"].(map[string]any)["home"] != "Local" || data["dir"] != "ltr" {
		t.Fatalf("unexpected page data %v", data)
	}
}

func TestSiteDictionaryFollowsWrites(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	w := s.do(t, nil, http.MethodGet, "/en/dictionary.json", "")
	if w.Header().Get(handler.ContentSourceHeader) != "default" {
		t.Fatalf("expected default source, got %q", w.Header().Get(handler.ContentSourceHeader))
	}

	body := `{"locale":"en","data":{"navbar":{"home":"Fresh"},"pages":{"faq":{"questions":[]}}}}`
	if w := s.do(t, cookies, http.MethodPut, "/admin/api/content", body); w.Code != http.StatusOK {
		t.Fatalf("sync failed %d", w.Code)
	}

	w = s.do(t, nil, http.MethodGet, "/en/dictionary.json", "")
	if w.Header().Get(handler.ContentSourceHeader) != "remote" {
		t.Fatalf("expected remote after sync, got %q", w.Header().Get(handler.ContentSourceHeader))
	}
	if decodeBody(t, w)["navbar"].(map[string]any)["home"] != "Fresh" {
		t.Fatalf("stale dictionary served: %s", w.Body.String())
	}

	w = s.do(t, nil, http.MethodGet, "/ar/dictionary.json", "")
	if w.Header().Get(handler.ContentSourceHeader) != "fallback-en" {
		t.Fatalf("arabic should fall back to english, got %q", w.Header().Get(handler.ContentSourceHeader))
	}
}

type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestStreamChangesDeliversAndReleases(t *testing.T) {
	s := setupServer(t)
	cookies := s.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/admin/api/changes", nil).WithContext(ctx)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.engine.ServeHTTP(rec, req)
	}()

	// 等待订阅建立
	time.Sleep(100 * time.Millisecond)
	write := store.ContentWrite{Locale: locale.English, Section: "navbar", Data: json.RawMessage(`{"home":"Live"}`)}
	if _, err := s.store.Upsert(context.Background(), write); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the client went away")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event:ready") || !strings.Contains(body, "event:change") {
		t.Fatalf("unexpected stream body %q", body)
	}
	if !strings.Contains(body, `"section":"navbar"`) {
		t.Fatalf("change payload missing section: %q", body)
	}
}
