package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/google/uuid"
)

// ObjectStore persists processed upload bytes
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// EncodeRunner runs CPU and memory heavy media work with bounded concurrency
type EncodeRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// UploadRequest is one file submitted for a category
type UploadRequest struct {
	Category  models.MediaCategory
	Candidate models.UploadCandidate
	Preset    string // image preset name; empty selects the profile preset
}

// UploadService runs the validation pipeline for each media category and
// stores the accepted bytes
type UploadService struct {
	files  *security.FileValidator
	audio  *security.AudioValidator
	images *security.ImageProcessor
	pool   EncodeRunner
	store  ObjectStore
	events *SecurityEventLog
	logger *slog.Logger
}

// NewUploadService creates an UploadService. store may be nil, in which case
// every upload fails with models.ErrStorageNotConfigured.
func NewUploadService(files *security.FileValidator, pool EncodeRunner, store ObjectStore, events *SecurityEventLog, logger *slog.Logger) *UploadService {
	return &UploadService{
		files:  files,
		audio:  security.NewAudioValidator(files),
		images: security.NewImageProcessor(files.Rules().Image),
		pool:   pool,
		store:  store,
		events: events,
		logger: logger,
	}
}

// StorageConfigured reports whether uploads can be accepted
func (s *UploadService) StorageConfigured() bool {
	return s.store != nil
}

// Upload validates, processes and stores req. Validation failures are
// returned as *security.ValidationError.
func (s *UploadService) Upload(ctx context.Context, meta RequestMeta, req UploadRequest) (*models.UploadResult, error) {
	if s.store == nil {
		s.rejected(ctx, meta, req, models.ErrStorageNotConfigured)
		return nil, models.ErrStorageNotConfigured
	}

	var (
		result *models.UploadResult
		err    error
	)
	switch req.Category {
	case models.MediaCategoryImage:
		result, err = s.uploadImage(ctx, meta, req)
	case models.MediaCategoryAudio:
		result, err = s.uploadAudio(ctx, meta, req)
	case models.MediaCategoryVideo:
		result, err = s.uploadVideo(ctx, meta, req)
	default:
		err = &security.ValidationError{Reason: fmt.Sprintf("Unsupported upload category %q", req.Category)}
	}

	if err != nil {
		s.rejected(ctx, meta, req, err)
		return nil, err
	}

	s.events.Emit(ctx, models.EventUploadSuccess, meta, models.EventDetails{
		"category":     string(req.Category),
		"key":          result.Object.Key,
		"content_type": result.Object.ContentType,
		"size":         result.Object.Size,
	})
	return result, nil
}

func (s *UploadService) uploadImage(ctx context.Context, meta RequestMeta, req UploadRequest) (*models.UploadResult, error) {
	preset, ok := security.LookupPreset(req.Preset)
	if !ok {
		return nil, &security.ValidationError{Reason: fmt.Sprintf("Unknown image preset %q", req.Preset)}
	}

	if _, err := s.files.Validate(req.Candidate, models.MediaCategoryImage); err != nil {
		return nil, err
	}

	var main, thumb *security.ProcessedImage
	err := s.pool.Run(ctx, func(ctx context.Context) error {
		var err error
		if main, err = s.images.Process(req.Candidate.Bytes, preset); err != nil {
			return err
		}
		if preset.Name == security.PresetStory.Name {
			thumb, err = s.images.Process(req.Candidate.Bytes, security.PresetThumbnail)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	key := s.objectKey(meta, models.MediaCategoryImage, ".jpg")
	object, err := s.put(ctx, key, main.ContentType, main.Bytes)
	if err != nil {
		return nil, err
	}
	object.Width, object.Height = main.Width, main.Height

	result := &models.UploadResult{Category: models.MediaCategoryImage, Object: *object}

	if thumb != nil {
		thumbKey := strings.TrimSuffix(key, ".jpg") + "-thumb.jpg"
		thumbObject, err := s.put(ctx, thumbKey, thumb.ContentType, thumb.Bytes)
		if err != nil {
			return nil, err
		}
		thumbObject.Width, thumbObject.Height = thumb.Width, thumb.Height
		result.Thumbnail = thumbObject
	}

	return result, nil
}

func (s *UploadService) uploadAudio(ctx context.Context, meta RequestMeta, req UploadRequest) (*models.UploadResult, error) {
	check, err := s.audio.Validate(req.Candidate)
	if err != nil {
		return nil, err
	}

	// Audio in a webm or mp4 container sniffs as video; keep the declared audio type
	contentType := check.EffectiveType
	if security.MajorType(contentType) != "audio" {
		if declared, _, err := mime.ParseMediaType(req.Candidate.DeclaredMimeType); err == nil {
			contentType = declared
		}
	}

	body := security.StripID3(req.Candidate.Bytes)
	object, err := s.put(ctx, s.objectKey(meta, models.MediaCategoryAudio, check.Extension), contentType, body)
	if err != nil {
		return nil, err
	}

	return &models.UploadResult{
		Category:         models.MediaCategoryAudio,
		Object:           *object,
		EstimatedSeconds: check.EstimatedDuration.Seconds(),
	}, nil
}

func (s *UploadService) uploadVideo(ctx context.Context, meta RequestMeta, req UploadRequest) (*models.UploadResult, error) {
	check, err := s.files.Validate(req.Candidate, models.MediaCategoryVideo)
	if err != nil {
		return nil, err
	}

	object, err := s.put(ctx, s.objectKey(meta, models.MediaCategoryVideo, check.Extension), check.EffectiveType, req.Candidate.Bytes)
	if err != nil {
		return nil, err
	}

	return &models.UploadResult{Category: models.MediaCategoryVideo, Object: *object}, nil
}

// objectKey builds "<category>/<user>/<uuid><ext>". The client filename
// never reaches the key.
func (s *UploadService) objectKey(meta RequestMeta, category models.MediaCategory, ext string) string {
	owner := meta.UserID
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%s%s", category, owner, uuid.New().String(), ext)
}

func (s *UploadService) put(ctx context.Context, key, contentType string, body []byte) (*models.StoredObject, error) {
	url, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		s.logger.Error("failed to store upload", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &models.StoredObject{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

func (s *UploadService) rejected(ctx context.Context, meta RequestMeta, req UploadRequest, err error) {
	details := models.EventDetails{
		"category":      string(req.Category),
		"declared_type": req.Candidate.DeclaredMimeType,
		"filename":      security.SanitizeFilename(req.Candidate.Filename),
		"size":          req.Candidate.Size(),
	}

	var verr *security.ValidationError
	switch {
	case errors.As(err, &verr):
		details["reason"] = verr.Reason
	case errors.Is(err, models.ErrEncodeBusy):
		details["reason"] = "encoder busy"
	case errors.Is(err, models.ErrStorageNotConfigured):
		details["reason"] = "storage not configured"
	default:
		details["reason"] = "storage failure"
	}

	s.events.Emit(ctx, models.EventUploadRejected, meta, details)
}
