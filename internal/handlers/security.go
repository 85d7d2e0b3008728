package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventLister reads persisted security events
type EventLister interface {
	Recent(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error)
}

// SecurityHandler serves the pattern table and the security event log
type SecurityHandler struct {
	patterns *security.PatternTable
	events   EventLister
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(patterns *security.PatternTable, events EventLister) *SecurityHandler {
	return &SecurityHandler{patterns: patterns, events: events}
}

// SecurityEventsResponse is a page of security events
type SecurityEventsResponse struct {
	Events []*models.SecurityEvent `json:"events"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// Patterns serves the active injection pattern table so the browser mirror
// is generated from the same source
// @Summary Injection pattern table
// @Produce json
// @Success 200 {object} security.PatternTable
// @Router /security/patterns [get]
func (h *SecurityHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	pkghttp.WriteJSON(w, http.StatusOK, h.patterns)
}

// Events lists recent security events, newest first
// @Summary Recent security events
// @Security BearerAuth
// @Param kind query string false "Event kind"
// @Param limit query int false "Page size (1-500)"
// @Param offset query int false "Offset"
// @Produce json
// @Success 200 {object} SecurityEventsResponse
// @Router /security/events [get]
func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := q.Get("kind")
	if kind != "" && !models.KnownSecurityEventKind(kind) {
		pkghttp.WriteBadRequest(w, "unknown event kind")
		return
	}

	limit := defaultEventLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			pkghttp.WriteBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			pkghttp.WriteBadRequest(w, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	events, err := h.events.Recent(r.Context(), models.SecurityEventKind(kind), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SecurityEventsResponse{Events: events, Limit: limit, Offset: offset})
}
