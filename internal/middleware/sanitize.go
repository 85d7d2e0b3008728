package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// DefaultMaxJSONBody bounds JSON bodies buffered for sanitization
const DefaultMaxJSONBody = 1 << 20

// InputSanitizerConfig holds request sanitizer configuration
type InputSanitizerConfig struct {
	// Aliases maps JSON keys to field rules; security.SkipField leaves a key untouched
	Aliases      map[string]string
	MaxBodyBytes int64
}

// DefaultFieldAliases maps the API's JSON keys onto sanitizer field rules
func DefaultFieldAliases() map[string]string {
	return map[string]string{
		"first_name":       "firstName",
		"last_name":        "lastName",
		"hobbies":          "hobby",
		"message":          "chatMessage",
		"q":                "search",
		"query":            "search",
		"password":         security.SkipField,
		"current_password": security.SkipField,
		"new_password":     security.SkipField,
	}
}

// SanitizeInput checks query parameters for injection and rewrites JSON
// bodies with their sanitized form. Multipart bodies are left to the upload
// pipeline.
func SanitizeInput(sanitizer *security.Sanitizer, config InputSanitizerConfig, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxJSONBody
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for key, values := range r.URL.Query() {
				for _, value := range values {
					if category := sanitizer.Detect(value); category != "" {
						blockInput(w, r, events, ipConfig, logger, "query."+key, category)
						return
					}
				}
			}

			if !isJSONRequest(r) || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxBodyBytes+1))
			r.Body.Close()
			if err != nil {
				pkghttp.WriteBadRequest(w, "Failed to read request body")
				return
			}
			if int64(len(body)) > config.MaxBodyBytes {
				pkghttp.WriteBadRequest(w, "Request body too large")
				return
			}
			if len(bytes.TrimSpace(body)) == 0 {
				r.Body = io.NopCloser(bytes.NewReader(body))
				next.ServeHTTP(w, r)
				return
			}

			value, err := security.ParseJSON(body)
			if err != nil {
				pkghttp.WriteBadRequest(w, "Invalid JSON body")
				return
			}

			outcome := sanitizer.SanitizeObject(value, config.Aliases)
			if outcome.Blocked {
				blockInput(w, r, events, ipConfig, logger, "body", outcome.Reason)
				return
			}

			if outcome.Modified {
				body, err = outcome.Clean.MarshalJSON()
				if err != nil {
					logger.Error("failed to encode sanitized body", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set("Content-Length", strconv.Itoa(len(body)))
			next.ServeHTTP(w, r)
		})
	}
}

func blockInput(w http.ResponseWriter, r *http.Request, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger, location, reason string) {
	logger.Warn("input blocked",
		slog.String("path", r.URL.Path),
		slog.String("location", location),
		slog.String("reason", reason))
	events.Emit(r.Context(), models.EventInjectionBlocked, RequestMetaFrom(r, ipConfig), models.EventDetails{
		"location": location,
		"reason":   reason,
	})
	pkghttp.WriteInvalidInput(w)
}

func isJSONRequest(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
