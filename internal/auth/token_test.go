package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 15*time.Minute)

	token, err := tm.GenerateAccessToken("user-42", "bob@example.com", "admin")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_UniqueJTI(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute)

	first, err := tm.GenerateAccessToken("u", "u@example.com", "user")
	require.NoError(t, err)
	second, err := tm.GenerateAccessToken("u", "u@example.com", "user")
	require.NoError(t, err)

	c1, err := tm.ValidateToken(first)
	require.NoError(t, err)
	c2, err := tm.ValidateToken(second)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, -time.Minute)

	token, err := tm.GenerateAccessToken("u", "u@example.com", "user")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsOtherTokenType(t *testing.T) {
	claims := &models.TokenClaims{
		Type:   "refresh",
		UserID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sentinel",
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tm := auth.NewTokenManager(testSecret, time.Minute)
	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := &models.TokenClaims{Type: auth.TokenTypeAccess, UserID: "u"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tm := auth.NewTokenManager(testSecret, time.Minute)
	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsForeignIssuer(t *testing.T) {
	claims := &models.TokenClaims{
		Type:   auth.TokenTypeAccess,
		UserID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tm := auth.NewTokenManager(testSecret, time.Minute)
	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}
