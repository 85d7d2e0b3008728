package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// UserService defines the profile operations used by UserHandler
type UserService interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, meta services.RequestMeta, id string, profile models.Profile) (*models.User, error)
}

// UserHandler handles profile requests for the authenticated user
type UserHandler struct {
	service  UserService
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// UpdateProfileRequest represents the request body for a profile update.
// Limits mirror the sanitizer field rules.
type UpdateProfileRequest struct {
	FirstName string   `json:"first_name" validate:"required,max=50"`
	LastName  string   `json:"last_name" validate:"max=50"`
	Bio       string   `json:"bio" validate:"max=500"`
	Hobbies   []string `json:"hobbies" validate:"max=20,dive,max=100"`
}

// GetMe returns the authenticated user's profile
// @Summary Current user
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.UserResponse
// @Router /users/me [get]
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}

// UpdateProfile replaces the authenticated user's free-text profile fields
// @Summary Update profile
// @Security BearerAuth
// @Accept json
// @Param request body UpdateProfileRequest true "Profile"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /users/me/profile [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.RequestMetaFrom(r, h.ipConfig), claims.UserID, models.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Hobbies:   req.Hobbies,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSecurityBlocked):
			pkghttp.WriteInvalidInput(w)
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to update profile", slog.String("user_id", claims.UserID), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}
