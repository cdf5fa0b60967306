package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
	"gorm.io/gorm"
)

// Deps 汇总构造 API 所需的依赖。
type Deps struct {
	DB      *gorm.DB
	Store   store.Store
	Content *service.ContentService
	Sync    *service.SyncService
	Gallery *service.GalleryService
	Local   *localfile.Source
	Driver  string
	Logger  zerolog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db      *gorm.DB
	store   store.Store
	content *service.ContentService
	sync    *service.SyncService
	gallery *service.GalleryService
	local   *localfile.Source
	driver  string
	log     zerolog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Deps) *API {
	return &API{
		db:      deps.DB,
		store:   deps.Store,
		content: deps.Content,
		sync:    deps.Sync,
		gallery: deps.Gallery,
		local:   deps.Local,
		driver:  deps.Driver,
		log:     deps.Logger,
	}
}

// renderHTML 在向模板渲染时自动附加语言与书写方向。
func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}

	pref := a.requestLocale(c)
	if _, exists := payload["lang"]; !exists {
		payload["lang"] = pref.HTMLLang
	}
	if _, exists := payload["dir"]; !exists {
		payload["dir"] = pref.Dir
	}
	if title, ok := payload["title"].(string); ok {
		payload["title"] = localizeFixedTitle(pref.Locale, title)
	}

	c.HTML(status, template, payload)
}

