package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/google/uuid"
)

// SecurityEventRepository persists security events
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	List(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RequestMeta identifies the request an event belongs to
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	UserID    string
	Path      string
	Method    string
}

// SecurityEventLog records every accept/reject decision of the security layer.
// Each event is written to the structured log and, when a repository is
// configured, persisted.
type SecurityEventLog struct {
	repo           SecurityEventRepository
	sink           *logger.SecurityLogger
	logger         *slog.Logger
	persistTimeout time.Duration
	now            func() time.Time
}

// NewSecurityEventLog creates a SecurityEventLog. repo may be nil, in which
// case events are only logged.
func NewSecurityEventLog(repo SecurityEventRepository, sink *logger.SecurityLogger, log *slog.Logger, persistTimeout time.Duration) *SecurityEventLog {
	if sink == nil {
		sink = logger.NewSecurityLogger(log)
	}
	if log == nil {
		log = slog.Default()
	}
	return &SecurityEventLog{
		repo:           repo,
		sink:           sink,
		logger:         log,
		persistTimeout: persistTimeout,
		now:            time.Now,
	}
}

// Emit records one event of kind for the request described by meta
func (l *SecurityEventLog) Emit(ctx context.Context, kind models.SecurityEventKind, meta RequestMeta, details models.EventDetails) {
	event := &models.SecurityEvent{
		Kind:      kind,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		UserID:    optional(meta.UserID),
		Path:      optional(meta.Path),
		Method:    optional(meta.Method),
		Details:   details,
	}
	l.Record(ctx, event)
}

// Record logs and persists event. Persistence failures are logged and never
// returned: the request outcome does not depend on the audit trail.
func (l *SecurityEventLog) Record(ctx context.Context, event *models.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	// Dual-write: immediate structured log output
	l.sink.Log(ctx, logger.SecurityEntry{
		Event:     string(event.Kind),
		Failure:   event.Kind.IsFailure(),
		Timestamp: event.Timestamp,
		IPAddress: event.ClientIP,
		UserAgent: event.UserAgent,
		UserID:    deref(event.UserID),
		Path:      deref(event.Path),
		Method:    deref(event.Method),
		Details:   event.Details,
	})

	if l.repo == nil {
		return
	}

	// Persist even when the request context is already cancelled
	persistCtx := context.WithoutCancel(ctx)
	if l.persistTimeout > 0 {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(persistCtx, l.persistTimeout)
		defer cancel()
	}

	if err := l.repo.Create(persistCtx, event); err != nil {
		l.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event", string(event.Kind)),
			slog.Any("error", err),
		)
	}
}

// Recent lists persisted events, newest first. An empty kind lists all kinds.
func (l *SecurityEventLog) Recent(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error) {
	if l.repo == nil {
		return []*models.SecurityEvent{}, nil
	}
	return l.repo.List(ctx, kind, limit, offset)
}

// Cleanup deletes persisted events older than retention
func (l *SecurityEventLog) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if l.repo == nil {
		return 0, nil
	}
	return l.repo.DeleteBefore(ctx, l.now().Add(-retention))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
