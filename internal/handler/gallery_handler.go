package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
)

type galleryImagePayload struct {
	ImageType    string            `json:"image_type"`
	ImageNumber  int               `json:"image_number"`
	ImageURL     *string           `json:"image_url"`
	Descriptions map[string]string `json:"descriptions"`
}

func (p galleryImagePayload) toInput(caseID int) (service.PhotoInput, error) {
	descriptions := make(map[locale.Locale]string, len(p.Descriptions))
	for raw, text := range p.Descriptions {
		l, ok := parseLocale(raw)
		if !ok {
			return service.PhotoInput{}, store.ErrInvalidLocale
		}
		descriptions[l] = text
	}
	return service.PhotoInput{
		CaseID:       caseID,
		ImageType:    strings.ToLower(strings.TrimSpace(p.ImageType)),
		ImageNumber:  p.ImageNumber,
		ImageURL:     p.ImageURL,
		Descriptions: descriptions,
	}, nil
}

// GetGalleryCase returns every gallery row of a case.
func (a *API) GetGalleryCase(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}

	rows, err := a.gallery.Images(c.Request.Context(), caseID)
	if err != nil {
		a.respondWriteError(c, err, "Failed to load gallery images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": caseID, "images": rows})
}

// ProbeGalleryCase reports which photos of a case exist on disk.
func (a *API) ProbeGalleryCase(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}

	probes, err := a.gallery.ProbeImages(c.Request.Context(), caseID)
	if err != nil {
		a.respondWriteError(c, err, "Failed to probe gallery images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": caseID, "images": probes})
}

// CreateGalleryCase allocates the next free case id.
func (a *API) CreateGalleryCase(c *gin.Context) {
	caseID, err := a.gallery.NextCaseID(c.Request.Context())
	if err != nil {
		a.respondWriteError(c, err, "Failed to allocate case id")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"case_id": caseID})
}

// SaveGalleryImage upserts one photo slot in every locale that carries a description.
func (a *API) SaveGalleryImage(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}

	var payload galleryImagePayload
	if !bindJSON(c, &payload, "Invalid request body") {
		return
	}
	input, err := payload.toInput(caseID)
	if err != nil {
		respondError(c, http.StatusBadRequest, invalidLocaleMessage)
		return
	}

	rows, err := a.gallery.SavePhoto(c.Request.Context(), input)
	if err != nil {
		a.respondWriteError(c, err, "Failed to save gallery image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": rows})
}

// DeleteGalleryImage removes one photo slot in both locales.
func (a *API) DeleteGalleryImage(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}
	number, err := parseIntParam(c, "number")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid image number")
		return
	}

	deleted, err := a.gallery.DeletePhoto(c.Request.Context(), caseID, c.Param("type"), number)
	if err != nil {
		a.respondWriteError(c, err, "Failed to delete gallery image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// DeleteGalleryCase removes every photo of a case.
func (a *API) DeleteGalleryCase(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}

	deleted, err := a.gallery.DeleteCase(c.Request.Context(), caseID)
	if err != nil {
		a.respondWriteError(c, err, "Failed to delete gallery case")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// UploadGalleryImage 接收 multipart 图片，缩放后保存到约定路径。
func (a *API) UploadGalleryImage(c *gin.Context) {
	caseID, err := parseIntParam(c, "caseID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid case id")
		return
	}
	number, err := strconv.Atoi(c.PostForm("image_number"))
	if err != nil || number <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid image number")
		return
	}
	imageType := strings.ToLower(strings.TrimSpace(c.PostForm("image_type")))

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Image file is required")
		return
	}
	// 检查文件类型
	if contentType := file.Header.Get("Content-Type"); contentType != "" && !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "Only image uploads are allowed")
		return
	}
	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Could not read uploaded file")
		return
	}
	defer src.Close()

	probe, err := a.gallery.StoreUpload(caseID, imageType, number, src)
	if err != nil {
		if errors.Is(err, service.ErrGalleryUploadFormat) {
			respondError(c, http.StatusUnprocessableEntity, "Uploaded file is not a supported image")
			return
		}
		a.respondWriteError(c, err, "Failed to store upload")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": probe})
}
