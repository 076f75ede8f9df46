package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHandler(t *testing.T, mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/cron/follow-ups", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, handler(c))
	return rec
}

func TestCronAuth(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		header     string
		wantStatus int
	}{
		{"production with correct secret", true, "Bearer topsecret", http.StatusOK},
		{"production with wrong secret", true, "Bearer nope", http.StatusUnauthorized},
		{"production without header", true, "", http.StatusUnauthorized},
		{"development without header", false, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runHandler(t, CronAuth("topsecret", tt.production), tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCronAuthEmptySecretRejectsInProduction(t *testing.T) {
	rec := runHandler(t, CronAuth("", true), "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	secret := "admin-secret"

	validToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "operator",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	expiredToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "operator",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		s, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	wrongKeyToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "operator",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + validToken(), http.StatusOK},
		{"expired token", "Bearer " + expiredToken(), http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + wrongKeyToken(), http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runHandler(t, AdminAuth(secret), tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
