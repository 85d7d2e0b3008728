package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateCSRFToken returns length random bytes encoded as lowercase hex.
// Tokens are stateless: the cookie and the header are compared directly.
func GenerateCSRFToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid CSRF token length %d", length)
	}

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	return hex.EncodeToString(randomBytes), nil
}

// CSRFTokensMatch reports whether the cookie and header tokens are present
// and byte-for-byte identical
func CSRFTokensMatch(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}
