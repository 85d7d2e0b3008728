package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging, keeping the first 3 characters
func SanitizedEmail(email string) string {
	if email == "" {
		return ""
	}
	runes := []rune(email)
	if len(runes) <= 3 {
		return string(runes) + "***"
	}
	return string(runes[:3]) + "***"
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "token", "secret", "api_key", "apikey",
		"email", "auth", "csrf",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
