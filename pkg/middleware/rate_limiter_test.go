package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindowLimiter struct {
	allow bool
	err   error
}

func (f *fakeWindowLimiter) AllowRequest(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return f.allow, f.err
}

func runLimited(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, handler(c))
	return rec
}

func TestSlidingWindowRejectsWithRetryAfter(t *testing.T) {
	mw := SlidingWindowMiddleware(&fakeWindowLimiter{allow: false}, "chat", 10, 2*time.Minute)

	rec := runLimited(t, mw)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"retry_after":120`)
}

func TestSlidingWindowFailsOpen(t *testing.T) {
	mw := SlidingWindowMiddleware(&fakeWindowLimiter{err: context.DeadlineExceeded}, "chat", 10, time.Minute)

	rec := runLimited(t, mw)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareRejectsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	mw := rl.RateLimitMiddleware()

	first := runLimited(t, mw)
	assert.Equal(t, http.StatusOK, first.Code)

	second := runLimited(t, mw)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
