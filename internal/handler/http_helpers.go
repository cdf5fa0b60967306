package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
)

const invalidLocaleMessage = "Invalid or missing locale parameter"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseIntParam(c *gin.Context, key string) (int, error) {
	raw := c.Param(key)
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return id, nil
}

func parseLocale(raw string) (locale.Locale, bool) {
	return locale.Parse(raw)
}

// respondWriteError 根据错误类型选择状态码，未识别的错误一律视为存储失败。
func (a *API) respondWriteError(c *gin.Context, err error, fallback string) {
	var validation *dictionary.ValidationError
	var syncErr *service.SyncError
	var notFound *localfile.NotFoundError

	switch {
	case errors.Is(err, store.ErrVersionConflict):
		respondError(c, http.StatusConflict, "Content was changed by someone else; reload and try again")
	case errors.Is(err, store.ErrInvalidLocale):
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
	case errors.Is(err, store.ErrSectionMissing):
		respondError(c, http.StatusBadRequest, "Missing section parameter")
	case errors.Is(err, store.ErrInvalidImageType),
		errors.Is(err, store.ErrInvalidImageNumber),
		errors.Is(err, store.ErrInvalidGalleryCase),
		errors.Is(err, service.ErrGalleryUploadEmpty):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGalleryPhotoMissing):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		respondError(c, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		respondError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &syncErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "failed": syncErr.Failed})
	default:
		respondError(c, http.StatusInternalServerError, fallback)
	}
	if !errors.Is(err, store.ErrVersionConflict) {
		a.log.Warn().Err(err).Str("path", c.FullPath()).Msg(fallback)
	}
}
