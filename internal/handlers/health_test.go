package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all up", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(map[string]handlers.HealthCheck{"database": up, "redis": up}).
			Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp map[string]string
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, map[string]string{"status": "healthy", "database": "up", "redis": "up"}, resp)
	})

	t.Run("redis down", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(map[string]handlers.HealthCheck{"database": up, "redis": down}).
			Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp map[string]string
		handlers.AssertJSONResponse(t, w, http.StatusServiceUnavailable, &resp)
		assert.Equal(t, "unhealthy", resp["status"])
		assert.Equal(t, "down", resp["redis"])
	})
}
