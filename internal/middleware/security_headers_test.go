package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_Production(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "production"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expected := map[string]string{
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"X-XSS-Protection":             "0",
		"Referrer-Policy":              "strict-origin-when-cross-origin",
		"Permissions-Policy":           "camera=(), microphone=(), geolocation=(), payment=()",
		"Cross-Origin-Embedder-Policy": "credentialless",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "cross-origin",
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains; preload",
	}
	for header, want := range expected {
		assert.Equal(t, want, w.Header().Get(header), header)
	}

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.NotContains(t, csp, "unsafe-eval")
}

func TestSecurityHeaders_HSTSOnlyOverHTTPSInProduction(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		https bool
		want  bool
	}{
		{"production https", "production", true, true},
		{"production http", "production", false, false},
		{"development https", "development", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.https {
				req.Header.Set("X-Forwarded-Proto", "https")
			}
			w := httptest.NewRecorder()
			SecurityHeaders(SecurityHeadersConfig{Env: tt.env})(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestSecurityHeaders_Development(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler()).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "unsafe-inline")
}
