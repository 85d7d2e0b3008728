package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		problem  string
	}{
		{"valid strong password", "SecureP@ss123", ""},
		{"too short", "Pa@1", "must be at least 8 characters"},
		{"too long", "Aa1!" + strings.Repeat("x", 70), "must be at most 72 characters"},
		{"missing uppercase", "securepass@123", "missing uppercase letter"},
		{"missing lowercase", "SECUREPASS@123", "missing lowercase letter"},
		{"missing digit", "SecurePass@xyz", "missing digit"},
		{"missing special", "SecurePass123", "missing special character"},
		{"common password", "Password123!", "too common"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}

			var pve *PasswordValidationError
			require.ErrorAs(t, err, &pve)
			assert.Contains(t, pve.Errors, tt.problem)
			assert.Equal(t, "invalid password", err.Error())
		})
	}
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("SecureP@ss123")
	require.NoError(t, err)
	assert.NotEqual(t, "SecureP@ss123", hash)

	assert.NoError(t, h.Compare(hash, "SecureP@ss123"))
	assert.Error(t, h.Compare(hash, "SecureP@ss124"))
}

func TestPasswordHasher_Empty(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(DefaultBcryptCost).cost)
}
