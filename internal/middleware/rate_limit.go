package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// Scope names the limit in events, e.g. "login" or "upload.hour"
	Scope string
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
		Scope:    "auth",
	}
}

// UploadRateLimits returns the per-minute and per-hour upload limits
func UploadRateLimits(perMinute, perHour int) []RateLimitConfig {
	return []RateLimitConfig{
		{Requests: perMinute, Window: time.Minute, Scope: "upload.minute"},
		{Requests: perHour, Window: time.Hour, Scope: "upload.hour"},
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Forwarding headers are honoured only from trusted proxies.
func RateLimitByIP(config RateLimitConfig, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded(config, events, ipConfig, logger)),
	)
}

// RateLimitByUser rate limits authenticated requests by user ID, falling back
// to the client IP when no claims are present
func RateLimitByUser(config RateLimitConfig, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return "user:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded(config, events, ipConfig, logger)),
	)
}

func limitExceeded(config RateLimitConfig, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := RequestMetaFrom(r, ipConfig)
		logger.Warn("rate limit exceeded",
			slog.String("scope", config.Scope),
			slog.String("ip", meta.ClientIP),
			slog.String("path", r.URL.Path))
		events.Emit(r.Context(), models.EventRateLimitExceeded, meta, models.EventDetails{
			"scope":  config.Scope,
			"limit":  config.Requests,
			"window": config.Window.String(),
		})
		pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
	}
}
