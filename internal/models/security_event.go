package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SecurityEventKind names an outcome reported by the threat-mitigation layer
type SecurityEventKind string

const (
	EventLoginSuccess       SecurityEventKind = "auth.login.success"
	EventLoginFailure       SecurityEventKind = "auth.login.failure"
	EventRegister           SecurityEventKind = "auth.register"
	EventLogout             SecurityEventKind = "auth.logout"
	EventTokenRefresh       SecurityEventKind = "auth.token.refresh"
	EventPasswordChange     SecurityEventKind = "auth.password.change"
	EventBruteForceLockout  SecurityEventKind = "auth.bruteforce.lockout"
	EventValidationFailure  SecurityEventKind = "input.validation.failure"
	EventInjectionBlocked   SecurityEventKind = "input.injection.blocked"
	EventUploadRejected     SecurityEventKind = "upload.rejected"
	EventUploadSuccess      SecurityEventKind = "upload.success"
	EventRateLimitExceeded  SecurityEventKind = "rate.limit.exceeded"
	EventAccessDenied       SecurityEventKind = "access.denied"
	EventSuspiciousActivity SecurityEventKind = "suspicious.activity"
)

// IsFailure reports whether the kind describes a rejected or hostile request
func (k SecurityEventKind) IsFailure() bool {
	switch k {
	case EventLoginSuccess, EventRegister, EventLogout, EventTokenRefresh,
		EventPasswordChange, EventUploadSuccess:
		return false
	default:
		return true
	}
}

// KnownSecurityEventKind reports whether name is one of the defined kinds
func KnownSecurityEventKind(name string) bool {
	switch SecurityEventKind(name) {
	case EventLoginSuccess, EventLoginFailure, EventRegister, EventLogout,
		EventTokenRefresh, EventPasswordChange, EventBruteForceLockout,
		EventValidationFailure, EventInjectionBlocked, EventUploadRejected,
		EventUploadSuccess, EventRateLimitExceeded, EventAccessDenied,
		EventSuspiciousActivity:
		return true
	}
	return false
}

// SecurityEvent is a write-once record of one accept/reject decision
type SecurityEvent struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	Kind      SecurityEventKind `db:"event_kind" json:"event"`
	Timestamp time.Time         `db:"occurred_at" json:"timestamp"`
	ClientIP  string            `db:"client_ip" json:"ip"`
	UserAgent string            `db:"user_agent" json:"user_agent,omitempty"`
	UserID    *string           `db:"user_id" json:"user_id,omitempty"`
	Path      *string           `db:"path" json:"path,omitempty"`
	Method    *string           `db:"method" json:"method,omitempty"`
	Details   EventDetails      `db:"details" json:"details,omitempty"`
}

// EventDetails holds additional context for security events
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetails)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = EventDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(d))
}
