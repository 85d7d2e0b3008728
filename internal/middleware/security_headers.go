package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

const hstsHeader = "max-age=31536000; includeSubDomains; preload"

var productionCSP = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: https: blob:",
	"connect-src 'self' wss: https:",
	"font-src 'self'",
	"object-src 'none'",
	"base-uri 'self'",
	"form-action 'self'",
	"frame-ancestors 'none'",
	"upgrade-insecure-requests",
}, "; ")

// Development allows http/ws sources for hot reloading
var developmentCSP = strings.Join([]string{
	"default-src 'self' http: https: ws:",
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https: ws:",
	"style-src 'self' 'unsafe-inline' http: https:",
	"img-src 'self' data: https: http: blob:",
	"connect-src 'self' http: https: ws: wss:",
	"font-src 'self' data: http: https:",
	"object-src 'none'",
	"base-uri 'self'",
	"form-action 'self'",
	"frame-ancestors 'none'",
}, "; ")

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	production := config.Env == "production"
	csp := developmentCSP
	if production {
		csp = productionCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
			h.Set("Cross-Origin-Embedder-Policy", "credentialless")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			// Uploaded media is served to other origins
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")

			// HSTS only over HTTPS in production
			if production && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", hstsHeader)
			}

			next.ServeHTTP(w, r)
		})
	}
}
