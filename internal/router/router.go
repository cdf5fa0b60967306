package router

import (
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/handler"
	"github.com/shwanortho/site/internal/logger"
)

// Options 描述路由需要的外部资源
type Options struct {
	SessionSecret string
	// TemplateDir 为空时不加载模板，测试可自行设置 HTMLRender
	TemplateDir string
	StaticDir   string
	Logger      zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logger.RequestLogger(opts.Logger), gin.Recovery())

	// 配置会话中间件
	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = "shwan-ortho-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 7 * 24 * 60 * 60})
	r.Use(sessions.Sessions("site_session", store))

	// 加载模板并添加自定义函数
	r.SetFuncMap(template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"str": func(v any) string {
			s, _ := v.(string)
			return s
		},
		"list": func(v any) []any {
			items, _ := v.([]any)
			return items
		},
		"obj": func(v any) map[string]any {
			m, _ := v.(map[string]any)
			return m
		},
	})
	if dir := strings.TrimSpace(opts.TemplateDir); dir != "" {
		r.LoadHTMLGlob(filepath.Join(dir, "*", "*.html"))
	}

	// 静态文件服务，图库约定路径 /images/gallery/... 位于 STATIC_DIR 下
	staticDir := strings.TrimSpace(opts.StaticDir)
	if staticDir == "" {
		staticDir = "web/static"
	}
	r.Static("/static", staticDir)
	r.Static("/images", filepath.Join(staticDir, "images"))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// 后台管理路由
	admin := r.Group("/admin")
	admin.Use(api.LocaleMiddleware())
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("", api.ShowEditor)

			// API路由
			apiGroup := auth.Group("/api")
			{
				apiGroup.GET("/content", api.GetContent)
				apiGroup.GET("/content/versions", api.GetContentVersions)
				apiGroup.PUT("/content", api.PutContent)
				apiGroup.PUT("/content/all", api.PutAllContent)
				apiGroup.POST("/content", api.PostContent)

				apiGroup.GET("/local-content", api.GetLocalContent)
				apiGroup.POST("/local-content", api.PostLocalContent)

				apiGroup.POST("/gallery/cases", api.CreateGalleryCase)
				apiGroup.GET("/gallery/:caseID", api.GetGalleryCase)
				apiGroup.GET("/gallery/:caseID/probe", api.ProbeGalleryCase)
				apiGroup.PUT("/gallery/:caseID/images", api.SaveGalleryImage)
				apiGroup.POST("/gallery/:caseID/upload", api.UploadGalleryImage)
				apiGroup.DELETE("/gallery/:caseID/images/:type/:number", api.DeleteGalleryImage)
				apiGroup.DELETE("/gallery/:caseID", api.DeleteGalleryCase)

				apiGroup.GET("/status", api.Status)
				apiGroup.GET("/changes", api.StreamChanges)
			}
		}
	}

	// 公开页面
	public := r.Group("")
	public.Use(api.LocaleMiddleware())
	{
		public.GET("/", api.RedirectToLocale)
		public.GET("/:locale", api.ShowSite)
		public.GET("/:locale/dictionary.json", api.SiteDictionary)
	}

	return r
}
