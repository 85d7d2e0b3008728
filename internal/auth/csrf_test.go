package auth_test

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCSRFToken(t *testing.T) {
	token, err := auth.GenerateCSRFToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	_, err = hex.DecodeString(token)
	assert.NoError(t, err)

	other, err := auth.GenerateCSRFToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateCSRFToken_InvalidLength(t *testing.T) {
	_, err := auth.GenerateCSRFToken(0)
	assert.Error(t, err)
}

func TestCSRFTokensMatch(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   bool
	}{
		{"identical", "abc123", "abc123", true},
		{"different", "abc123", "abc124", false},
		{"case differs", "abcdef", "ABCDEF", false},
		{"missing cookie", "", "abc123", false},
		{"missing header", "abc123", "", false},
		{"both empty", "", "", false},
		{"prefix only", "abc123", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.CSRFTokensMatch(tt.cookie, tt.header))
		})
	}
}

func TestSetCSRFCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	cfg := auth.CookieConfig{Name: "__bellor_csrf", Secure: true, SameSite: "strict"}

	auth.SetCSRFCookie(rec, "tok", time.Hour, cfg)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "__bellor_csrf", c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 3600, c.MaxAge)
	assert.False(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestClearCSRFCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	auth.ClearCSRFCookie(rec, auth.CookieConfig{Name: "__bellor_csrf"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGetCSRFCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := auth.GetCSRFCookie(req, "__bellor_csrf")
	assert.ErrorIs(t, err, http.ErrNoCookie)

	req.AddCookie(&http.Cookie{Name: "__bellor_csrf", Value: "v"})
	value, err := auth.GetCSRFCookie(req, "__bellor_csrf")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}
