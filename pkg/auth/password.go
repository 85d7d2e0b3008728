package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 14
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt input limit, in bytes
)

// PasswordRequirements is the user-facing description of the policy
const PasswordRequirements = "8-72 characters with upper and lower case letters, a digit and a special character"

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	// Generic on purpose: specifics stay in logs
	return "invalid password"
}

var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"password1!":   true,
	"p@ssw0rd":     true,
	"p@ssword1":    true,
	"qwerty123!":   true,
	"welcome1!":    true,
	"letmein1!":    true,
	"admin123!":    true,
	"iloveyou1!":   true,
	"changeme1!":   true,
	"trustno1!":    true,
}

// PasswordHasher hashes and verifies credentials with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped to bcrypt's bounds
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare returns nil when password matches hashedPassword
func (h *PasswordHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the registration password policy
func ValidatePassword(password string) error {
	problems := make([]string, 0)

	if n := len(password); n < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	} else if n > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		problems = append(problems, "missing uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "missing lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "missing digit")
	}
	if !hasSpecial {
		problems = append(problems, "missing special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		problems = append(problems, "too common")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}
	return nil
}
