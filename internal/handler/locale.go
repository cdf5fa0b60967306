package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shwanortho/site/internal/locale"
)

const (
	localeContextKey     = "__request_locale"
	languageCookieName   = "site_lang"
	languageCookieMaxAge = 365 * 24 * 60 * 60
)

var countryHeaderCandidates = []string{
	"CF-IPCountry",
	"X-Geo-Country",
	"X-Forwarded-Country",
	"X-Country-Code",
}

// LocaleMiddleware resolves request language and sets headers for downstream caching.
func (a *API) LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		pref := a.requestLocale(c)
		c.Header("Content-Language", pref.HTMLLang)
		varyHeaders := append([]string{"Accept-Language"}, countryHeaderCandidates...)
		if readLanguageCookie(c) != "" || locale.Normalize(c.Query("lang")) != "" {
			varyHeaders = append(varyHeaders, "Cookie")
		}
		appendVaryHeader(c, varyHeaders...)
		c.Next()
	}
}

func (a *API) requestLocale(c *gin.Context) locale.Preference {
	if cached, exists := c.Get(localeContextKey); exists {
		if pref, ok := cached.(locale.Preference); ok {
			return pref
		}
	}
	l, persist := resolveLocale(c)
	pref := locale.PreferenceFor(l)
	if persist {
		persistLocale(c, pref.Locale)
	}
	c.Set(localeContextKey, pref)
	return pref
}

// 优先级：路径 > ?lang > cookie > 地理位置头 > Accept-Language > 英文
func resolveLocale(c *gin.Context) (locale.Locale, bool) {
	if fromPath, ok := locale.Parse(c.Param("locale")); ok {
		return fromPath, readLanguageCookie(c) != fromPath
	}
	if override := locale.Normalize(c.Query("lang")); override != "" {
		return override, true
	}
	if cookie := readLanguageCookie(c); cookie != "" {
		return cookie, false
	}
	if country := readCountryHeader(c); country != "" {
		return locale.FromCountryCode(country), false
	}
	if fromHeader := locale.FromAcceptLanguage(c.GetHeader("Accept-Language")); fromHeader != "" {
		return fromHeader, false
	}
	return locale.English, false
}

func readLanguageCookie(c *gin.Context) locale.Locale {
	value, err := c.Cookie(languageCookieName)
	if err != nil {
		return ""
	}
	return locale.Normalize(value)
}

func persistLocale(c *gin.Context, l locale.Locale) {
	if !l.Valid() {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     languageCookieName,
		Value:    l.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   strings.EqualFold(detectScheme(c), "https"),
		MaxAge:   languageCookieMaxAge,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})
}

func detectScheme(c *gin.Context) string {
	if proto := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		return strings.Split(proto, ",")[0]
	}
	if c.Request != nil && c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

// buildLanguageSwitch 返回切换到另一语言的链接。
func buildLanguageSwitch(current locale.Locale) map[string]string {
	other := current.Other()
	return map[string]string{
		"locale": other.String(),
		"label":  locale.PreferenceFor(other).Label,
		"url":    "/" + other.String(),
	}
}

func readCountryHeader(c *gin.Context) string {
	for _, header := range countryHeaderCandidates {
		value := strings.TrimSpace(c.GetHeader(header))
		if value == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.Split(value, ",")[0])
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func appendVaryHeader(c *gin.Context, headers ...string) {
	existing := c.Writer.Header().Get("Vary")
	seen := make(map[string]struct{})
	order := make([]string, 0, len(headers))
	for _, token := range append(strings.Split(existing, ","), headers...) {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		order = append(order, trimmed)
	}
	if len(order) > 0 {
		c.Header("Vary", strings.Join(order, ", "))
	}
}
