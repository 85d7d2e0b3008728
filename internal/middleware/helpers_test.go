package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Kind    models.SecurityEventKind
	Meta    services.RequestMeta
	Details models.EventDetails
}

// recordingEmitter captures emitted security events
type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEmitter) Emit(_ context.Context, kind models.SecurityEventKind, meta services.RequestMeta, details models.EventDetails) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Kind: kind, Meta: meta, Details: details})
}

func (e *recordingEmitter) Kinds() []models.SecurityEventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]models.SecurityEventKind, 0, len(e.events))
	for _, ev := range e.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (e *recordingEmitter) Last() recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
