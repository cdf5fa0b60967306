package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
)

// ContentSourceHeader tells the client which stage of the fallback chain served a dictionary.
const ContentSourceHeader = "X-Content-Source"

const changeHeartbeat = 25 * time.Second

type syncPayload struct {
	Locale   string                `json:"locale"`
	Data     dictionary.Dictionary `json:"data"`
	Versions service.Versions      `json:"versions"`
}

type syncAllPayload struct {
	EN       dictionary.Dictionary       `json:"en"`
	AR       dictionary.Dictionary       `json:"ar"`
	Versions map[string]service.Versions `json:"versions"`
}

type sectionPayload struct {
	Locale  string `json:"locale"`
	Section string `json:"section"`
	Data    any    `json:"data"`
	Version int    `json:"version"`
}

type localPayload struct {
	Locale string                `json:"locale"`
	Data   dictionary.Dictionary `json:"data"`
}

// GetContent 返回存储中某语言的完整字典，或 section 参数指定的单个区块（不存在时为 null）。
// fallback=true 时走完整的回退链，供编辑器在存储为空时加载初始内容。
func (a *API) GetContent(c *gin.Context) {
	l, ok := parseLocale(c.Query("locale"))
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	ctx := c.Request.Context()

	if section := strings.TrimSpace(c.Query("section")); section != "" {
		data, _, err := a.content.Section(ctx, l, section)
		if err != nil {
			a.respondWriteError(c, err, "Failed to read content from database")
			return
		}
		c.JSON(http.StatusOK, data)
		return
	}

	if c.Query("fallback") == "true" {
		res := a.content.Resolve(ctx, l)
		c.Header(ContentSourceHeader, string(res.Source))
		c.JSON(http.StatusOK, res.Dictionary)
		return
	}

	doc, err := a.content.Remote(ctx, l)
	if errors.Is(err, service.ErrNoContent) {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	if err != nil {
		a.respondWriteError(c, err, "Failed to read content from database")
		return
	}
	c.Header(ContentSourceHeader, string(service.SourceRemote))
	c.JSON(http.StatusOK, doc)
}

// GetContentVersions 返回各区块当前版本号，编辑器保存时回传用于冲突检测。
func (a *API) GetContentVersions(c *gin.Context) {
	l, ok := parseLocale(c.Query("locale"))
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	versions, err := a.content.Versions(c.Request.Context(), l)
	if err != nil {
		a.respondWriteError(c, err, "Failed to read content versions")
		return
	}
	c.JSON(http.StatusOK, versions)
}

// PutContent 将一个语言的完整字典拆分为区块后写入存储。
func (a *API) PutContent(c *gin.Context) {
	var payload syncPayload
	if !bindJSON(c, &payload, "Invalid request body") {
		return
	}
	l, ok := parseLocale(payload.Locale)
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	if payload.Data == nil {
		respondError(c, http.StatusBadRequest, "Missing data parameter")
		return
	}

	result, err := a.sync.SyncLocale(c.Request.Context(), l, payload.Data, payload.Versions)
	if err != nil {
		a.respondWriteError(c, err, "Failed to save content to database")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("Full content updated for %s", l),
		"timestamp": result.Timestamp.Format(time.RFC3339),
		"versions":  result.Versions,
		"backup":    result.Backup,
	})
}

// PutAllContent 同时同步英文与阿语两份字典。
func (a *API) PutAllContent(c *gin.Context) {
	var payload syncAllPayload
	if !bindJSON(c, &payload, "Invalid request body") {
		return
	}
	docs := map[locale.Locale]dictionary.Dictionary{}
	if payload.EN != nil {
		docs[locale.English] = payload.EN
	}
	if payload.AR != nil {
		docs[locale.Arabic] = payload.AR
	}
	if len(docs) == 0 {
		respondError(c, http.StatusBadRequest, "Missing data parameter")
		return
	}
	versions := map[locale.Locale]service.Versions{}
	for raw, v := range payload.Versions {
		l, ok := parseLocale(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, invalidLocaleMessage)
			return
		}
		versions[l] = v
	}

	results, err := a.sync.SyncAll(c.Request.Context(), docs, versions)
	if err != nil {
		a.respondWriteError(c, err, "Failed to save content to database")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Full content updated for all locales",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"results":   results,
	})
}

// PostContent 写入单个区块。
func (a *API) PostContent(c *gin.Context) {
	var payload sectionPayload
	if !bindJSON(c, &payload, "Invalid request body") {
		return
	}
	l, ok := parseLocale(payload.Locale)
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	if strings.TrimSpace(payload.Section) == "" {
		respondError(c, http.StatusBadRequest, "Missing section parameter")
		return
	}
	if payload.Data == nil {
		respondError(c, http.StatusBadRequest, "Missing data parameter")
		return
	}

	row, err := a.sync.SaveSection(c.Request.Context(), l, payload.Section, payload.Data, payload.Version)
	if err != nil {
		a.respondWriteError(c, err, "Failed to write content to database")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Content updated for %s %s", l, row.Section),
		"data":    row,
	})
}

// GetLocalContent 读取本地 {locale}.json 文件。
func (a *API) GetLocalContent(c *gin.Context) {
	l, ok := parseLocale(c.Query("locale"))
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	if a.local == nil {
		respondError(c, http.StatusNotFound, fmt.Sprintf("Content file not found for locale: %s", l))
		return
	}
	doc, err := a.local.Load(l)
	if err != nil {
		a.respondWriteError(c, err, "Failed to read content")
		return
	}
	c.Header(ContentSourceHeader, string(service.SourceLocal))
	c.JSON(http.StatusOK, doc)
}

// PostLocalContent 备份并覆盖本地 {locale}.json 文件。
func (a *API) PostLocalContent(c *gin.Context) {
	var payload localPayload
	if !bindJSON(c, &payload, "Invalid request body") {
		return
	}
	l, ok := parseLocale(payload.Locale)
	if !ok {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}
	if payload.Data == nil {
		respondError(c, http.StatusBadRequest, "Missing data parameter")
		return
	}

	backup, err := a.sync.SaveLocal(l, payload.Data)
	if err != nil {
		if errors.Is(err, service.ErrLocalSourceMissing) {
			respondError(c, http.StatusServiceUnavailable, "Local content directory is not configured")
			return
		}
		a.respondWriteError(c, err, "Failed to write content")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Content updated for locale: %s", l),
		"backup":  backup,
	})
}

// Status 报告存储是否可达，供后台显示在线/离线状态。
func (a *API) Status(c *gin.Context) {
	payload := gin.H{"online": true, "store": a.driver}
	if err := a.content.Online(c.Request.Context()); err != nil {
		payload["online"] = false
		payload["error"] = err.Error()
	}
	c.JSON(http.StatusOK, payload)
}

// StreamChanges 以 Server-Sent Events 推送存储变更，客户端断开即取消订阅。
func (a *API) StreamChanges(c *gin.Context) {
	ctx := c.Request.Context()
	changes := make(chan store.Change, 16)
	sub, err := a.store.Subscribe(ctx, func(change store.Change) {
		select {
		case changes <- change:
		default:
		}
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("subscribe to content changes")
		respondError(c, http.StatusServiceUnavailable, "Change feed unavailable")
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(changeHeartbeat)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"store": a.driver})
	c.Writer.Flush()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case change := <-changes:
			c.SSEvent("change", change)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
