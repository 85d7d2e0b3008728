package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, meta services.RequestMeta, email, password string) (*services.AuthResponse, error)
	Logout(ctx context.Context, meta services.RequestMeta)
	LockoutStatus(ctx context.Context, clientIP, email string) (models.LockoutDecision, error)
	LockoutMessage() string
}

// RegistrationService creates accounts
type RegistrationService interface {
	CreateUser(ctx context.Context, meta services.RequestMeta, input services.NewUserInput) (*models.User, error)
}

// CSRFSettings configures CSRF token issuance
type CSRFSettings struct {
	Cookie      auth.CookieConfig
	HeaderName  string
	TokenLength int
	MaxAge      time.Duration
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	users    RegistrationService
	csrf     CSRFSettings
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, users RegistrationService, csrf CSRFSettings, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		users:    users,
		csrf:     csrf,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
}

// CSRFTokenResponse is returned by the token issuance endpoint
type CSRFTokenResponse struct {
	Token      string `json:"csrf_token"`
	HeaderName string `json:"header_name"`
	ExpiresIn  int    `json:"expires_in"`
}

const registrationAccepted = "Registration received. If the email is not already registered, you can now sign in."

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	meta := middleware.RequestMetaFrom(r, h.ipConfig)

	authResp, err := h.service.Login(r.Context(), meta, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrLockedOut):
			pkghttp.WriteLockedOut(w, h.service.LockoutMessage())
		case errors.Is(err, models.ErrUnauthorized):
			// Same message for unknown accounts and wrong passwords
			pkghttp.WriteUnauthorized(w, "Invalid credentials")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

// Register handles user registration
// @Summary User registration
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 202
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.users.CreateUser(r.Context(), middleware.RequestMetaFrom(r, h.ipConfig), services.NewUserInput{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			// Existing accounts get the success response to prevent user enumeration
		case errors.Is(err, models.ErrSecurityBlocked):
			pkghttp.WriteInvalidInput(w)
			return
		case errors.Is(err, models.ErrValidation):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request",
				"Password does not meet requirements", pkgauth.PasswordRequirements)
			return
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": registrationAccepted,
	})
}

// Logout records the logout and clears the CSRF cookie
// @Summary User logout
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	h.service.Logout(r.Context(), middleware.RequestMetaFrom(r, h.ipConfig))
	auth.ClearCSRFCookie(w, h.csrf.Cookie)

	w.WriteHeader(http.StatusNoContent)
}

// CSRFToken issues a fresh CSRF token in a readable cookie and in the body
// @Summary Issue CSRF token
// @Produce json
// @Success 200 {object} CSRFTokenResponse
// @Router /auth/csrf-token [get]
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := auth.GenerateCSRFToken(h.csrf.TokenLength)
	if err != nil {
		h.logger.Error("failed to generate csrf token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetCSRFCookie(w, token, h.csrf.MaxAge, h.csrf.Cookie)
	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, CSRFTokenResponse{
		Token:      token,
		HeaderName: h.csrf.HeaderName,
		ExpiresIn:  int(h.csrf.MaxAge.Seconds()),
	})
}

// LockoutStatus reports the remaining attempts for an (IP, email) pair.
// The IP defaults to the caller's own address.
// @Summary Lockout status
// @Security BearerAuth
// @Param email query string true "Account email"
// @Param ip query string false "Client IP"
// @Produce json
// @Success 200 {object} models.LockoutDecision
// @Router /auth/lockout-status [get]
func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if err := validate.Var(email, "required,email"); err != nil {
		pkghttp.WriteBadRequest(w, "email must be a valid email address")
		return
	}

	clientIP := r.URL.Query().Get("ip")
	if clientIP == "" {
		clientIP = pkghttp.ExtractClientIP(r, h.ipConfig)
	} else if err := validate.Var(clientIP, "ip"); err != nil {
		pkghttp.WriteBadRequest(w, "ip must be a valid IP address")
		return
	}

	decision, err := h.service.LockoutStatus(r.Context(), clientIP, email)
	if err != nil {
		if errors.Is(err, models.ErrCounterStoreUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Lockout state is temporarily unavailable")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, decision)
}
