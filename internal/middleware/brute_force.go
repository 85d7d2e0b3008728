package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// maxLoginBody bounds how much of a login body is buffered to read the email
const maxLoginBody = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// BruteForceCheck rejects login attempts for a (client IP, email) pair that
// is locked out. It only reads the lockout state; the login handler records
// failures and clears the counter on success.
func BruteForceCheck(guard *services.BruteForceGuard, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := peekEmail(r)
			if err != nil {
				pkghttp.WriteBadRequest(w, "Request body too large")
				return
			}

			meta := RequestMetaFrom(r, ipConfig)
			decision, err := guard.IsLockedOut(r.Context(), meta.ClientIP, email)
			if err != nil {
				logger.Error("lockout check failed",
					slog.String("ip", meta.ClientIP),
					slog.Any("error", err))
				events.Emit(r.Context(), models.EventSuspiciousActivity, meta, models.EventDetails{
					"reason": "lockout check unavailable",
				})
				pkghttp.WriteServiceUnavailable(w, "Login is temporarily unavailable")
				return
			}

			if decision.Locked {
				events.Emit(r.Context(), models.EventRateLimitExceeded, meta, models.EventDetails{
					"scope":    "login.lockout",
					"email":    pkglogger.SanitizedEmail(email),
					"attempts": decision.Attempts,
				})
				pkghttp.WriteLockedOut(w, guard.LockoutMessage())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads body.email and restores the body for the next handler.
// A body that is not JSON or has no email yields "".
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody+1))
	r.Body.Close()
	if err != nil {
		return "", err
	}
	if len(body) > maxLoginBody {
		return "", errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return payload.Email, nil
}
