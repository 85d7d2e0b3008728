package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/handlers"
	middlewareCustom "github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/repositories"
	"github.com/BradenHooton/sentinel/internal/routes"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/internal/services"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
)

const (
	testFrontendOrigin = "http://localhost:5173"
	csrfCookieName     = "__bellor_csrf"
	csrfHeaderName     = "X-CSRF-Token"
)

// TestServer wraps httptest.Server with database, Redis and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Tokens *auth.TokenManager
}

// NewTestServer initializes a complete HTTP server backed by Postgres and Redis.
// Object storage stays unconfigured.
func NewTestServer(db *database.DB, redisClient *redis.Client) (*TestServer, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)

	patterns, err := security.DefaultPatternTable()
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	sanitizer := security.NewSanitizer(patterns)
	files := security.NewFileValidator(security.DefaultFileRules())
	hasher := pkgauth.NewPasswordHasher(4)
	tokens := auth.NewTokenManager("integration-secret-32-characters-long", 15*time.Minute)

	eventLog := services.NewSecurityEventLog(eventRepo, nil, logger, 2*time.Second)
	guard := services.NewBruteForceGuard(
		services.NewRateTracker(repositories.NewRedisCounterStore(redisClient), time.Second),
		services.BruteForceConfig{MaxAttempts: 5, LockoutWindow: 15 * time.Minute, KeyPrefix: "bf:"},
		logger,
	)

	authService := services.NewAuthService(userRepo, hasher, tokens, guard, eventLog, logger)
	userService := services.NewUserService(userRepo, hasher, sanitizer, eventLog, logger)
	uploadService := services.NewUploadService(files, background.NewEncodePool(2, time.Second, logger), nil, eventLog, logger)

	csrf := handlers.CSRFSettings{
		Cookie:      auth.CookieConfig{Name: csrfCookieName, SameSite: "strict"},
		HeaderName:  csrfHeaderName,
		TokenLength: 32,
		MaxAge:      time.Hour,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, userService, csrf, nil, logger),
		Users:    handlers.NewUserHandler(userService, nil, logger),
		Uploads:  handlers.NewUploadHandler(uploadService, files.Rules(), 1<<20, eventLog, nil, logger),
		Security: handlers.NewSecurityHandler(patterns, eventLog),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": db.HealthCheck,
			"redis":    repositories.NewRedisCounterStore(redisClient).Ping,
		}),
	}, routes.Guards{
		Tokens:     tokens,
		BruteForce: guard,
		Sanitizer:  sanitizer,
		Events:     eventLog,
		CSRF: middlewareCustom.CSRFGuardConfig{
			CookieName:     csrfCookieName,
			HeaderName:     csrfHeaderName,
			FrontendOrigin: testFrontendOrigin,
		},
		LoginPerMinute:   1000,
		RegisterPerHour:  1000,
		UploadsPerMinute: 10,
		UploadsPerHour:   50,
		Logger:           logger,
	})

	return &TestServer{
		Server: httptest.NewServer(r),
		DB:     db,
		Tokens: tokens,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// CSRFToken fetches a fresh double-submit token
func (ts *TestServer) CSRFToken() (string, error) {
	resp, err := http.Get(ts.Server.URL + "/auth/csrf-token")
	if err != nil {
		return "", err
	}

	var body handlers.CSRFTokenResponse
	if err := ParseJSONResponse(resp, &body); err != nil {
		return "", err
	}
	return body.Token, nil
}

// Request makes an HTTP request carrying a CSRF cookie and header
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	token, err := ts.CSRFToken()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	req.Header.Set(csrfHeaderName, token)

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + accessToken,
		"Origin":        testFrontendOrigin,
	})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
