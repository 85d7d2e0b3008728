package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockoutMessage = "Too many failed login attempts. Please try again in 15 minutes."

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCSRFSettings() handlers.CSRFSettings {
	return handlers.CSRFSettings{
		Cookie:      auth.CookieConfig{Name: "__bellor_csrf", SameSite: "strict"},
		HeaderName:  "X-CSRF-Token",
		TokenLength: 32,
		MaxAge:      time.Hour,
	}
}

func newAuthHandler(svc *handlers.MockAuthService, users *handlers.MockRegistrationService) *handlers.AuthHandler {
	if users == nil {
		users = &handlers.MockRegistrationService{}
	}
	return handlers.NewAuthHandler(svc, users, testCSRFSettings(), nil, testLogger())
}

func TestLogin_Success(t *testing.T) {
	var gotEmail string
	var gotMeta services.RequestMeta
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, meta services.RequestMeta, email, password string) (*services.AuthResponse, error) {
			gotEmail, gotMeta = email, meta
			return &services.AuthResponse{AccessToken: "access_token_123", TokenType: "Bearer", ExpiresIn: 900}, nil
		},
	}

	req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{
		Email:    "  User@Example.com ",
		Password: "Password#123",
	})
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	newAuthHandler(mockAuth, nil).Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "user@example.com", gotEmail)
	assert.Equal(t, "192.0.2.1", gotMeta.ClientIP)
	assert.Equal(t, "test-agent", gotMeta.UserAgent)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"bad credentials", models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Invalid credentials"},
		{"locked out", models.ErrLockedOut, http.StatusTooManyRequests, pkghttp.CodeTooManyAttempts, lockoutMessage},
		{"internal", models.ErrInternalServer, http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				Message: lockoutMessage,
				LoginFunc: func(context.Context, services.RequestMeta, string, string) (*services.AuthResponse, error) {
					return nil, tt.err
				},
			}

			req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", handlers.LoginRequest{
				Email:    "user@example.com",
				Password: "wrong",
			})
			w := httptest.NewRecorder()
			newAuthHandler(mockAuth, nil).Login(w, req)

			resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing password", map[string]string{"email": "user@example.com"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newAuthHandler(&handlers.MockAuthService{}, nil).Login(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/login", tt.body))

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

func TestRegister(t *testing.T) {
	body := handlers.RegisterRequest{
		Email:     "new@example.com",
		Password:  "Str0ng#Passw0rd",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"created", nil, http.StatusAccepted, ""},
		{"existing account looks the same", fmt.Errorf("create: %w", models.ErrConflict), http.StatusAccepted, ""},
		{"weak password", fmt.Errorf("%w: invalid password", models.ErrValidation), http.StatusBadRequest, "bad_request"},
		{"blocked name", &services.InputBlockedError{Field: "firstName", Reason: "Blocked: xss pattern detected"}, http.StatusBadRequest, pkghttp.CodeInvalidInput},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got services.NewUserInput
			users := &handlers.MockRegistrationService{
				CreateUserFunc: func(_ context.Context, _ services.RequestMeta, input services.NewUserInput) (*models.User, error) {
					got = input
					if tt.err != nil {
						return nil, tt.err
					}
					return &models.User{ID: "user-1"}, nil
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(&handlers.MockAuthService{}, users).Register(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/register", body))

			if tt.wantCode == "" {
				var resp map[string]string
				handlers.AssertJSONResponse(t, w, tt.wantStatus, &resp)
				assert.NotEmpty(t, resp["message"])
			} else {
				resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
				if tt.name == "weak password" {
					assert.Equal(t, pkgauth.PasswordRequirements, resp.Details)
				}
			}
			assert.Equal(t, "new@example.com", got.Email)
			assert.Equal(t, "Str0ng#Passw0rd", got.Password)
		})
	}
}

func TestLogout_ClearsCSRFCookie(t *testing.T) {
	mockAuth := &handlers.MockAuthService{}

	req := handlers.WithAuthContext(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "user-1", "user@example.com", "user")
	w := httptest.NewRecorder()
	newAuthHandler(mockAuth, nil).Logout(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, mockAuth.LogoutCalls, 1)
	assert.Equal(t, "user-1", mockAuth.LogoutCalls[0].UserID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "__bellor_csrf", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestLogout_Unauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthHandler(&handlers.MockAuthService{}, nil).Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestCSRFToken_SetsReadableCookie(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthHandler(&handlers.MockAuthService{}, nil).CSRFToken(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))

	var resp handlers.CSRFTokenResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Len(t, resp.Token, 64)
	assert.Equal(t, "X-CSRF-Token", resp.HeaderName)
	assert.Equal(t, 3600, resp.ExpiresIn)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestLockoutStatus(t *testing.T) {
	var gotIP, gotEmail string
	mockAuth := &handlers.MockAuthService{
		LockoutStatusFunc: func(_ context.Context, clientIP, email string) (models.LockoutDecision, error) {
			gotIP, gotEmail = clientIP, email
			return models.NewLockoutDecision(3, 5), nil
		},
	}
	handler := newAuthHandler(mockAuth, nil)

	w := httptest.NewRecorder()
	handler.LockoutStatus(w, httptest.NewRequest(http.MethodGet, "/auth/lockout-status?email=User@Example.com&ip=203.0.113.9", nil))

	var decision models.LockoutDecision
	handlers.AssertJSONResponse(t, w, http.StatusOK, &decision)
	assert.Equal(t, models.LockoutDecision{Locked: false, Attempts: 3, Remaining: 2}, decision)
	assert.Equal(t, "203.0.113.9", gotIP)
	assert.Equal(t, "user@example.com", gotEmail)

	// Defaults to the caller's address
	w = httptest.NewRecorder()
	handler.LockoutStatus(w, httptest.NewRequest(http.MethodGet, "/auth/lockout-status?email=user@example.com", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "192.0.2.1", gotIP)
}

func TestLockoutStatus_Errors(t *testing.T) {
	down := &handlers.MockAuthService{
		LockoutStatusFunc: func(context.Context, string, string) (models.LockoutDecision, error) {
			return models.LockoutDecision{}, fmt.Errorf("%w: dial tcp", models.ErrCounterStoreUnavailable)
		},
	}

	tests := []struct {
		name       string
		svc        *handlers.MockAuthService
		target     string
		wantStatus int
		wantCode   string
	}{
		{"missing email", &handlers.MockAuthService{}, "/auth/lockout-status", http.StatusBadRequest, "bad_request"},
		{"bad ip", &handlers.MockAuthService{}, "/auth/lockout-status?email=a@b.com&ip=nope", http.StatusBadRequest, "bad_request"},
		{"store down", down, "/auth/lockout-status?email=a@b.com", http.StatusServiceUnavailable, "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newAuthHandler(tt.svc, nil).LockoutStatus(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
