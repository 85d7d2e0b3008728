// Package storage holds the object store backends for processed uploads.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/models"
)

// ObjectStore persists processed upload bytes and returns their public URL
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// New returns the backend selected by cfg.Driver. An empty driver returns
// models.ErrStorageNotConfigured so the server can start with uploads disabled.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	switch cfg.Driver {
	case "":
		return nil, models.ErrStorageNotConfigured
	case DriverS3:
		return NewS3Store(ctx, cfg, logger)
	case DriverMinio:
		return NewMinioStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectURL joins base and key, escaping nothing: keys are generated and URL safe
func objectURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
