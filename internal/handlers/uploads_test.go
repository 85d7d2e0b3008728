package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, target, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return handlers.WithAuthContext(req, "user-1", "user@example.com", "user")
}

func newUploadHandler(svc *handlers.MockUploader, events *handlers.MockEventEmitter) *handlers.UploadHandler {
	return handlers.NewUploadHandler(svc, security.DefaultFileRules(), 1<<20, events, nil, testLogger())
}

func TestUpload_PassesCandidateToService(t *testing.T) {
	svc := &handlers.MockUploader{
		UploadFunc: func(_ context.Context, meta services.RequestMeta, req services.UploadRequest) (*models.UploadResult, error) {
			assert.Equal(t, "user-1", meta.UserID)
			return &models.UploadResult{
				Category: req.Category,
				Object:   models.StoredObject{Key: "image/user-1/x.jpg", URL: "https://cdn.example.test/image/user-1/x.jpg"},
			}, nil
		},
	}

	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	req := multipartUpload(t, "/uploads/image?preset=story", "file", "me.jpg", "image/jpeg", data)
	w := httptest.NewRecorder()
	newUploadHandler(svc, &handlers.MockEventEmitter{}).Upload(models.MediaCategoryImage)(w, req)

	var resp models.UploadResult
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "https://cdn.example.test/image/user-1/x.jpg", resp.Object.URL)

	require.Len(t, svc.Requests, 1)
	got := svc.Requests[0]
	assert.Equal(t, models.MediaCategoryImage, got.Category)
	assert.Equal(t, "story", got.Preset)
	assert.Equal(t, "image/jpeg", got.Candidate.DeclaredMimeType)
	assert.Equal(t, "me.jpg", got.Candidate.Filename)
	assert.Equal(t, data, got.Candidate.Bytes)
}

func TestUpload_PresetIgnoredOutsideImages(t *testing.T) {
	svc := &handlers.MockUploader{}
	req := multipartUpload(t, "/uploads/audio?preset=bogus", "file", "a.mp3", "audio/mpeg", []byte("ID3"))
	w := httptest.NewRecorder()
	newUploadHandler(svc, &handlers.MockEventEmitter{}).Upload(models.MediaCategoryAudio)(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.Requests, 1)
	assert.Empty(t, svc.Requests[0].Preset)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svc        *handlers.MockUploader
		target     string
		field      string
		wantStatus int
		wantCode   string
		wantMsg    string
		wantReason string
	}{
		{
			name:       "storage not configured",
			svc:        &handlers.MockUploader{Unconfigured: true},
			target:     "/uploads/image",
			field:      "file",
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   pkghttp.CodeStorageNotConfigured,
			wantReason: "storage not configured",
		},
		{
			name:       "no file",
			svc:        &handlers.MockUploader{},
			target:     "/uploads/image",
			wantStatus: http.StatusBadRequest,
			wantCode:   pkghttp.CodeNoFile,
			wantReason: "no file",
		},
		{
			name:       "unknown preset",
			svc:        &handlers.MockUploader{},
			target:     "/uploads/image?preset=banner",
			field:      "file",
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
			wantReason: "invalid preset",
		},
		{
			name: "validation failure",
			svc: &handlers.MockUploader{UploadFunc: func(context.Context, services.RequestMeta, services.UploadRequest) (*models.UploadResult, error) {
				return nil, &security.ValidationError{Reason: "File type image/gif is not allowed"}
			}},
			target:     "/uploads/image",
			field:      "file",
			wantStatus: http.StatusBadRequest,
			wantCode:   pkghttp.CodeInvalidFile,
			wantMsg:    "File type image/gif is not allowed",
		},
		{
			name: "encoder busy",
			svc: &handlers.MockUploader{UploadFunc: func(context.Context, services.RequestMeta, services.UploadRequest) (*models.UploadResult, error) {
				return nil, models.ErrEncodeBusy
			}},
			target:     "/uploads/image",
			field:      "file",
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "service_busy",
		},
		{
			name: "storage failure",
			svc: &handlers.MockUploader{UploadFunc: func(context.Context, services.RequestMeta, services.UploadRequest) (*models.UploadResult, error) {
				return nil, fmt.Errorf("store upload: %w", context.DeadlineExceeded)
			}},
			target:     "/uploads/image",
			field:      "file",
			wantStatus: http.StatusBadRequest,
			wantCode:   pkghttp.CodeUploadFailed,
			wantMsg:    "Upload failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartUpload(t, tt.target, tt.field, "x.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF})
			w := httptest.NewRecorder()
			events := &handlers.MockEventEmitter{}
			newUploadHandler(tt.svc, events).Upload(models.MediaCategoryImage)(w, req)

			resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
			if tt.wantReason == "" {
				// Rejections from the pipeline are recorded by the Uploader.
				assert.Empty(t, events.Kinds)
				return
			}
			require.Equal(t, []models.SecurityEventKind{models.EventUploadRejected}, events.Kinds)
			assert.Equal(t, tt.wantReason, events.Details[0]["reason"])
			assert.Equal(t, "image", events.Details[0]["category"])
		})
	}
}

func TestUpload_BodyOverLimit(t *testing.T) {
	rules := security.DefaultFileRules()
	rules.Image.MaxSize = 1024
	events := &handlers.MockEventEmitter{}
	handler := handlers.NewUploadHandler(&handlers.MockUploader{}, rules, 1<<10, events, nil, testLogger())

	req := multipartUpload(t, "/uploads/image", "file", "big.jpg", "image/jpeg", bytes.Repeat([]byte{0xAB}, 2<<20+1024))
	w := httptest.NewRecorder()
	handler.Upload(models.MediaCategoryImage)(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, pkghttp.CodeInvalidFile)
	assert.Equal(t, "File is too large", resp.Message)
	require.Equal(t, []models.SecurityEventKind{models.EventUploadRejected}, events.Kinds)
	assert.Equal(t, "file too large", events.Details[0]["reason"])
}
