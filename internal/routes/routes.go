package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Uploads  *handlers.UploadHandler
	Security *handlers.SecurityHandler
	Health   *handlers.HealthHandler
}

// Guards holds the shared collaborators of the request guards
type Guards struct {
	Tokens     *auth.TokenManager
	BruteForce *services.BruteForceGuard
	Sanitizer  *security.Sanitizer
	Events     middleware.EventEmitter
	CSRF       middleware.CSRFGuardConfig
	IPConfig   *pkghttp.IPConfig
	// Per-IP pre-limits in front of login and registration
	LoginPerMinute   int
	RegisterPerHour  int
	UploadsPerMinute int
	UploadsPerHour   int
	Logger           *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, g Guards) {
	authLimit := middleware.DefaultAuthRateLimit()
	if g.LoginPerMinute > 0 {
		authLimit.Requests = g.LoginPerMinute
	}
	authLimit.Scope = "login"

	registerLimit := middleware.RateLimitConfig{Requests: g.RegisterPerHour, Window: time.Hour, Scope: "register"}
	if registerLimit.Requests <= 0 {
		registerLimit.Requests = 3
	}

	csrf := middleware.CSRFGuard(g.CSRF, g.Events, g.IPConfig, g.Logger)
	sanitize := middleware.SanitizeInput(g.Sanitizer, middleware.InputSanitizerConfig{
		Aliases: middleware.DefaultFieldAliases(),
	}, g.Events, g.IPConfig, g.Logger)
	denied := func(r *http.Request, reason string) {
		g.Events.Emit(r.Context(), models.EventAccessDenied, middleware.RequestMetaFrom(r, g.IPConfig), models.EventDetails{
			"reason": reason,
		})
	}
	authenticate := auth.AuthMiddleware(g.Tokens, denied)

	// Public routes
	router.Get("/health", h.Health.Health)
	router.Get("/auth/csrf-token", h.Auth.CSRFToken)
	router.Get("/security/patterns", h.Security.Patterns)

	router.With(
		middleware.RateLimitByIP(authLimit, g.Events, g.IPConfig, g.Logger),
		csrf,
		sanitize,
		middleware.BruteForceCheck(g.BruteForce, g.Events, g.IPConfig, g.Logger),
	).Post("/auth/login", h.Auth.Login)

	router.With(
		middleware.RateLimitByIP(registerLimit, g.Events, g.IPConfig, g.Logger),
		csrf,
		sanitize,
	).Post("/auth/register", h.Auth.Register)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(csrf)

		r.Post("/auth/logout", h.Auth.Logout)
		r.Get("/users/me", h.Users.GetMe)
		r.With(sanitize).Put("/users/me/profile", h.Users.UpdateProfile)

		r.Route("/uploads", func(r chi.Router) {
			for _, limit := range middleware.UploadRateLimits(g.UploadsPerMinute, g.UploadsPerHour) {
				r.Use(middleware.RateLimitByUser(limit, g.Events, g.IPConfig, g.Logger))
			}
			r.Post("/image", h.Uploads.Upload(models.MediaCategoryImage))
			r.Post("/audio", h.Uploads.Upload(models.MediaCategoryAudio))
			r.Post("/video", h.Uploads.Upload(models.MediaCategoryVideo))
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin", denied))
			r.Get("/auth/lockout-status", h.Auth.LockoutStatus)
			r.Get("/security/events", h.Security.Events)
		})
	})
}
