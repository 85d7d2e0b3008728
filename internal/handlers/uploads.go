package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// multipartOverhead is allowed on top of the category size limit for form framing
const multipartOverhead = 1 << 20

// Uploader runs the upload pipeline
type Uploader interface {
	Upload(ctx context.Context, meta services.RequestMeta, req services.UploadRequest) (*models.UploadResult, error)
	StorageConfigured() bool
}

// UploadHandler accepts multipart uploads for each media category
type UploadHandler struct {
	service   Uploader
	rules     security.FileRules
	maxMemory int64
	events    middleware.EventEmitter
	ipConfig  *pkghttp.IPConfig
	logger    *slog.Logger
}

// NewUploadHandler creates a new UploadHandler. maxMemory bounds the part of a
// multipart form held in memory; the rest spills to temporary files. events
// records the rejections decided before the request reaches the Uploader.
func NewUploadHandler(service Uploader, rules security.FileRules, maxMemory int64, events middleware.EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		service:   service,
		rules:     rules,
		maxMemory: maxMemory,
		events:    events,
		ipConfig:  ipConfig,
		logger:    logger,
	}
}

// UploadQuery holds the optional query parameters of an upload
type UploadQuery struct {
	Preset string `validate:"omitempty,oneof=profile story thumbnail"`
}

// Upload returns the handler for category. The file is read from the "file"
// form field.
// @Summary Upload media
// @Security BearerAuth
// @Accept multipart/form-data
// @Param file formData file true "Media file"
// @Param preset query string false "Image preset"
// @Produce json
// @Success 201 {object} models.UploadResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /uploads/{category} [post]
func (h *UploadHandler) Upload(category models.MediaCategory) http.HandlerFunc {
	rules, _ := h.rules.ForCategory(category)
	maxBody := rules.MaxSize + multipartOverhead

	return func(w http.ResponseWriter, r *http.Request) {
		if !h.service.StorageConfigured() {
			h.rejected(r, category, "storage not configured")
			pkghttp.WriteError(w, http.StatusServiceUnavailable, pkghttp.CodeStorageNotConfigured, "Storage service is not configured")
			return
		}

		query := UploadQuery{Preset: r.URL.Query().Get("preset")}
		if category != models.MediaCategoryImage {
			query.Preset = ""
		}
		if err := ValidateRequest(query); err != nil {
			h.rejected(r, category, "invalid preset")
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		if err := r.ParseMultipartForm(h.maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.rejected(r, category, "file too large")
				pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeInvalidFile, "File is too large")
				return
			}
			h.rejected(r, category, "no file")
			pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeNoFile, "No file uploaded")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			h.rejected(r, category, "no file")
			pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeNoFile, "No file uploaded")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			h.rejected(r, category, "unreadable file")
			pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeUploadFailed, "Upload failed")
			return
		}

		result, err := h.service.Upload(r.Context(), middleware.RequestMetaFrom(r, h.ipConfig), services.UploadRequest{
			Category: category,
			Candidate: models.UploadCandidate{
				Bytes:            data,
				DeclaredMimeType: header.Header.Get("Content-Type"),
				Filename:         header.Filename,
			},
			Preset: query.Preset,
		})
		if err != nil {
			h.writeUploadError(w, category, err)
			return
		}

		pkghttp.WriteJSON(w, http.StatusCreated, result)
	}
}

// rejected records an upload refused before the pipeline ran. Rejections
// returned by the Uploader are recorded by the Uploader itself.
func (h *UploadHandler) rejected(r *http.Request, category models.MediaCategory, reason string) {
	if h.events == nil {
		return
	}
	h.events.Emit(r.Context(), models.EventUploadRejected, middleware.RequestMetaFrom(r, h.ipConfig), models.EventDetails{
		"category": string(category),
		"reason":   reason,
	})
}

func (h *UploadHandler) writeUploadError(w http.ResponseWriter, category models.MediaCategory, err error) {
	var verr *security.ValidationError
	switch {
	case errors.As(err, &verr):
		// The policy is public, so the reason is safe to return
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeInvalidFile, verr.Reason)
	case errors.Is(err, models.ErrStorageNotConfigured):
		pkghttp.WriteError(w, http.StatusServiceUnavailable, pkghttp.CodeStorageNotConfigured, "Storage service is not configured")
	case errors.Is(err, models.ErrEncodeBusy):
		pkghttp.WriteServiceBusy(w, "Media processing is busy, please retry shortly")
	default:
		h.logger.Error("upload failed", slog.String("category", string(category)), slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeUploadFailed, "Upload failed")
	}
}
