package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/pkg/auth"
	"github.com/BradenHooton/sentinel/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, profile models.Profile) (*models.User, error)
}

// InputBlockedError reports the field the sanitizer refused
type InputBlockedError struct {
	Field  string
	Reason string
}

func (e *InputBlockedError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

func (e *InputBlockedError) Unwrap() error {
	return models.ErrSecurityBlocked
}

// NewUserInput carries the fields accepted at registration
type NewUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService handles account creation and profile edits
type UserService struct {
	repo      UserRepository
	hasher    *auth.PasswordHasher
	sanitizer *security.Sanitizer
	events    *SecurityEventLog
	logger    *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, hasher *auth.PasswordHasher, sanitizer *security.Sanitizer, events *SecurityEventLog, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		hasher:    hasher,
		sanitizer: sanitizer,
		events:    events,
		logger:    logger,
	}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// CreateUser registers a new account. Names pass the sanitizer and the
// password must meet the strength policy.
func (s *UserService) CreateUser(ctx context.Context, meta RequestMeta, input NewUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	names, err := s.sanitizeFields(ctx, meta, map[string]string{
		"firstName": input.FirstName,
		"lastName":  input.LastName,
	})
	if err != nil {
		return nil, err
	}

	if err := auth.ValidatePassword(input.Password); err != nil {
		s.events.Emit(ctx, models.EventValidationFailure, meta, models.EventDetails{
			"field": "password",
		})
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		s.logger.Info("registration for existing account", slog.String("email", logger.SanitizedEmail(email)))
		return nil, models.ErrConflict
	}

	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    names["firstName"],
		LastName:     names["lastName"],
		Role:         "user",
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	meta.UserID = created.ID
	s.events.Emit(ctx, models.EventRegister, meta, nil)
	s.logger.Info("user created", slog.String("user_id", created.ID))

	return created, nil
}

// UpdateProfile sanitizes every free-text field and stores the result.
// Text is stored in its cleaned form; a blocked field rejects the update.
func (s *UserService) UpdateProfile(ctx context.Context, meta RequestMeta, id string, profile models.Profile) (*models.User, error) {
	fields, err := s.sanitizeFields(ctx, meta, map[string]string{
		"firstName": profile.FirstName,
		"lastName":  profile.LastName,
		"bio":       profile.Bio,
	})
	if err != nil {
		return nil, err
	}

	hobbies := make([]string, 0, len(profile.Hobbies))
	for _, hobby := range profile.Hobbies {
		out := s.sanitizer.Sanitize(hobby, "hobby")
		if out.Blocked {
			return nil, s.blocked(ctx, meta, "hobbies", out.Reason)
		}
		if out.Clean != "" {
			hobbies = append(hobbies, out.Clean)
		}
	}

	clean := models.Profile{
		FirstName: fields["firstName"],
		LastName:  fields["lastName"],
		Bio:       fields["bio"],
		Hobbies:   hobbies,
	}

	user, err := s.repo.UpdateProfile(ctx, id, clean)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update profile", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("profile updated", slog.String("user_id", id))
	return user, nil
}

// sanitizeFields cleans each value with the rule for its field name
func (s *UserService) sanitizeFields(ctx context.Context, meta RequestMeta, fields map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(fields))
	for field, value := range fields {
		out := s.sanitizer.Sanitize(value, field)
		if out.Blocked {
			return nil, s.blocked(ctx, meta, field, out.Reason)
		}
		clean[field] = out.Clean
	}
	return clean, nil
}

func (s *UserService) blocked(ctx context.Context, meta RequestMeta, field, reason string) error {
	s.events.Emit(ctx, models.EventInjectionBlocked, meta, models.EventDetails{
		"field":  field,
		"reason": reason,
	})
	return &InputBlockedError{Field: field, Reason: reason}
}
