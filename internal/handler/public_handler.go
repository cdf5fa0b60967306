package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// faqView 是渲染后的问答条目
type faqView struct {
	Question string
	Answer   template.HTML
}

// galleryCaseView 汇总单个病例的标题与照片
type galleryCaseView struct {
	ID     int
	Title  string
	Photos []service.Photo
}

// RedirectToLocale 根据偏好语言跳转到 /en 或 /ar
func (a *API) RedirectToLocale(c *gin.Context) {
	pref := a.requestLocale(c)
	c.Redirect(http.StatusFound, "/"+pref.Locale.String())
}

// ShowSite 渲染单页站点，内容来自回退链解析出的字典
func (a *API) ShowSite(c *gin.Context) {
	l, ok := locale.Parse(c.Param("locale"))
	if !ok {
		c.Redirect(http.StatusFound, "/"+locale.English.String())
		return
	}

	res := a.content.Resolve(c.Request.Context(), l)
	c.Header(ContentSourceHeader, string(res.Source))
	doc := res.Dictionary

	faqs, err := renderFAQs(doc.FAQs())
	if err != nil {
		c.Error(err) // 不中断渲染，但记录错误
	}

	// 回退到英文内容时按实际语言设置 lang 与书写方向
	served := locale.PreferenceFor(res.Locale)
	a.renderHTML(c, http.StatusOK, "site/index.html", gin.H{
		"lang":            served.HTMLLang,
		"dir":             served.Dir,
		"servedLocale":    res.Locale.String(),
		"title":           seoValue(doc, "title"),
		"metaDescription": seoValue(doc, "description"),
		"metaKeywords":    seoValue(doc, "keywords"),
		"canonical":       "/" + l.String(),
		"locale":          l.String(),
		"source":          string(res.Source),
		"navbar":          doc.Navbar(),
		"pages":           doc.Pages(),
		"faqs":            faqs,
		"gallery":         a.galleryCases(c, doc, l),
		"languageSwitch":  buildLanguageSwitch(l),
		"year":            time.Now().Year(),
	})
}

// SiteDictionary 以 JSON 返回解析后的字典，供前端脚本使用
func (a *API) SiteDictionary(c *gin.Context) {
	l, ok := locale.Parse(c.Param("locale"))
	if !ok {
		respondError(c, http.StatusNotFound, "unknown locale")
		return
	}
	res := a.content.Resolve(c.Request.Context(), l)
	c.Header(ContentSourceHeader, string(res.Source))
	c.JSON(http.StatusOK, res.Dictionary)
}

func (a *API) galleryCases(c *gin.Context, doc dictionary.Dictionary, l locale.Locale) []galleryCaseView {
	cases := doc.GalleryCases()
	views := make([]galleryCaseView, 0, len(cases))
	for _, gc := range cases {
		view := galleryCaseView{ID: gc.ID, Title: gc.Title}
		if a.gallery != nil {
			photos, err := a.gallery.Photos(c.Request.Context(), gc.ID, l)
			if err != nil {
				// 照片加载失败时仍展示病例标题
				c.Error(err)
			}
			view.Photos = photos
		}
		views = append(views, view)
	}
	return views
}

func renderFAQs(items []dictionary.FAQ) ([]faqView, error) {
	views := make([]faqView, 0, len(items))
	var firstErr error
	for _, item := range items {
		answer, err := renderMarkdown(item.Answer)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		views = append(views, faqView{Question: item.Question, Answer: answer})
	}
	return views, firstErr
}

func renderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

func seoValue(doc dictionary.Dictionary, key string) string {
	return strings.TrimSpace(doc.String("seo", key))
}
