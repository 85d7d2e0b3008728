package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	"github.com/BradenHooton/sentinel/pkg/logger"
)

// LockoutNotifier tells an account owner that logins were locked
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, email string, lockout time.Duration) error
}

// AuthService handles credential verification and the brute-force lifecycle
type AuthService struct {
	repo     UserRepository
	hasher   *pkgauth.PasswordHasher
	tm       *auth.TokenManager
	guard    *BruteForceGuard
	events   *SecurityEventLog
	notifier LockoutNotifier
	delay    *auth.FailureDelay
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, hasher *pkgauth.PasswordHasher, tm *auth.TokenManager, guard *BruteForceGuard, events *SecurityEventLog, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		tm:     tm,
		guard:  guard,
		events: events,
		logger: logger,
	}
}

// SetLockoutNotifier enables lockout emails. Call after the service is created.
func (s *AuthService) SetLockoutNotifier(n LockoutNotifier) {
	s.notifier = n
}

// SetFailureDelay pads failed logins to a uniform duration
func (s *AuthService) SetFailureDelay(d *auth.FailureDelay) {
	s.delay = d
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Bio       string   `json:"bio"`
	Hobbies   []string `json:"hobbies"`
	Role      string   `json:"role"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

// Login verifies credentials. Every failure counts against the
// (client IP, email) pair; the attempt that reaches the limit returns
// ErrLockedOut. Unknown accounts and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, meta RequestMeta, email, password string) (*AuthResponse, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user == nil || s.hasher.Compare(user.PasswordHash, password) != nil {
		return nil, s.loginFailed(ctx, meta, email, user, start)
	}

	if err := s.guard.ClearFailedAttempts(ctx, meta.ClientIP, email); err != nil {
		// The counter still expires with its window
		s.logger.Warn("failed to clear login attempts", slog.Any("error", err))
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	meta.UserID = user.ID
	s.events.Emit(ctx, models.EventLoginSuccess, meta, nil)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tm.AccessTokenExpiry().Seconds()),
		User:        UserToResponse(user),
	}, nil
}

// loginFailed records the failure, emits the matching event and returns the
// error for the caller
func (s *AuthService) loginFailed(ctx context.Context, meta RequestMeta, email string, user *models.User, start time.Time) error {
	defer func() {
		_ = s.delay.WaitFrom(ctx, start)
	}()

	if user != nil {
		meta.UserID = user.ID
	}

	decision, err := s.guard.RecordFailedAttempt(ctx, meta.ClientIP, email)
	if err != nil {
		s.events.Emit(ctx, models.EventLoginFailure, meta, models.EventDetails{
			"email":          logger.SanitizedEmail(email),
			"counter_status": "unavailable",
		})
		return models.ErrUnauthorized
	}

	if decision.Locked && decision.Attempts == s.guard.Config().MaxAttempts {
		s.events.Emit(ctx, models.EventBruteForceLockout, meta, models.EventDetails{
			"email":    logger.SanitizedEmail(email),
			"attempts": decision.Attempts,
		})
		if user != nil {
			s.notifyLockout(ctx, user.Email)
		}
		return models.ErrLockedOut
	}

	s.events.Emit(ctx, models.EventLoginFailure, meta, models.EventDetails{
		"email":     logger.SanitizedEmail(email),
		"remaining": decision.Remaining,
	})
	if decision.Locked {
		return models.ErrLockedOut
	}
	return models.ErrUnauthorized
}

// notifyLockout mails the owner without holding up the response
func (s *AuthService) notifyLockout(ctx context.Context, email string) {
	if s.notifier == nil {
		return
	}

	window := s.guard.Config().LockoutWindow
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := s.notifier.NotifyLockout(notifyCtx, email, window); err != nil {
			s.logger.Error("failed to send lockout notification",
				slog.String("email", logger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}()
}

// LockoutStatus reports the lockout state for a pair without changing it
func (s *AuthService) LockoutStatus(ctx context.Context, clientIP, email string) (models.LockoutDecision, error) {
	return s.guard.IsLockedOut(ctx, clientIP, email)
}

// LockoutMessage is the client-facing text for a locked pair
func (s *AuthService) LockoutMessage() string {
	return s.guard.LockoutMessage()
}

// Logout records the end of a session. Access tokens are short-lived and
// are not revoked server side.
func (s *AuthService) Logout(ctx context.Context, meta RequestMeta) {
	s.events.Emit(ctx, models.EventLogout, meta, nil)
	s.logger.Info("user logged out", slog.String("user_id", meta.UserID))
}

// UserToResponse converts a user model to its public representation
func UserToResponse(user *models.User) *UserResponse {
	hobbies := user.Hobbies
	if hobbies == nil {
		hobbies = []string{}
	}
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Bio:       user.Bio,
		Hobbies:   hobbies,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
