package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// EventEmitter receives security decisions made by the middleware chain
type EventEmitter interface {
	Emit(ctx context.Context, kind models.SecurityEventKind, meta services.RequestMeta, details models.EventDetails)
}

// CSRFGuardConfig holds CSRF guard configuration
type CSRFGuardConfig struct {
	CookieName     string
	HeaderName     string
	ExemptPrefixes []string
	FrontendOrigin string
	// Production rejects bearer requests that carry neither Origin nor Referer
	Production bool
}

// CSRFGuard returns a middleware that rejects cross-site state-changing requests.
//
// Bearer requests are checked against the frontend origin only. All other
// requests must echo the CSRF cookie in the CSRF header.
func CSRFGuard(config CSRFGuardConfig, events EventEmitter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	allowed := normaliseOrigin(config.FrontendOrigin)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || isExempt(r.URL.Path, config.ExemptPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := pkghttp.BearerToken(r); ok {
				if reason := checkOrigin(r, allowed, config.Production); reason != "" {
					logger.Warn("csrf origin validation failed",
						slog.String("path", r.URL.Path),
						slog.String("reason", reason))
					events.Emit(r.Context(), models.EventSuspiciousActivity, RequestMetaFrom(r, ipConfig), models.EventDetails{
						"reason": "CSRF origin validation failed: " + reason,
					})
					pkghttp.WriteError(w, http.StatusForbidden, pkghttp.CodeCSRFFailed, "Request origin validation failed")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			cookieToken, _ := auth.GetCSRFCookie(r, config.CookieName)
			headerToken := r.Header.Get(config.HeaderName)
			if !auth.CSRFTokensMatch(cookieToken, headerToken) {
				reason := "token mismatch"
				if cookieToken == "" || headerToken == "" {
					reason = "token missing"
				}
				events.Emit(r.Context(), models.EventSuspiciousActivity, RequestMetaFrom(r, ipConfig), models.EventDetails{
					"reason": "CSRF " + reason,
				})
				pkghttp.WriteCSRFFailed(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkOrigin returns a non-empty reason when the request origin is not the
// frontend origin. Origins are compared exactly after parsing, so a look-alike
// host that merely shares a prefix is rejected.
func checkOrigin(r *http.Request, allowed string, production bool) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		if allowed == "" || normaliseOrigin(origin) != allowed {
			return "origin mismatch"
		}
		return ""
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		if allowed == "" || normaliseOrigin(referer) != allowed {
			return "referer mismatch"
		}
		return ""
	}

	if production {
		return "origin and referer missing"
	}
	return ""
}

// normaliseOrigin reduces a URL to scheme://host[:port], or "" if it is not absolute
func normaliseOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isExempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
