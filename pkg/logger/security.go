package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// SecurityEntry is the log-line shape of a security event
type SecurityEntry struct {
	Event     string
	Failure   bool
	Timestamp time.Time
	IPAddress string
	UserAgent string
	UserID    string
	Path      string
	Method    string
	Details   map[string]interface{}
}

// SecurityLogger writes security events as structured log records
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a security logger.
// A nil logger falls back to a text handler on stderr.
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &SecurityLogger{logger: logger}
}

// Log emits one record; failures are logged at warn level
func (sl *SecurityLogger) Log(ctx context.Context, entry SecurityEntry) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event", entry.Event),
		slog.String("timestamp", ts.UTC().Format(time.RFC3339)),
	}

	if entry.IPAddress != "" {
		attrs = append(attrs, slog.String("ip", entry.IPAddress))
	}
	if entry.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", entry.UserAgent))
	}
	if entry.UserID != "" {
		attrs = append(attrs, slog.String("user_id", entry.UserID))
	}
	if entry.Path != "" {
		attrs = append(attrs, slog.String("path", entry.Path))
	}
	if entry.Method != "" {
		attrs = append(attrs, slog.String("method", entry.Method))
	}
	if len(entry.Details) > 0 {
		attrs = append(attrs, slog.Any("details", entry.Details))
	}

	level := slog.LevelInfo
	if entry.Failure {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(ctx, level, "security_event", attrs...)
}
