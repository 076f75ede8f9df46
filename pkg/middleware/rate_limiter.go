package middleware

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apierrors "github.com/pipeworks-za/backend/pkg/api/errors"
)

// RateLimiter holds the rate limiters for different IPs
type RateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
	r        rate.Limit // requests per second
	b        int        // burst
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	// Convert requests per minute to requests per second
	rps := float64(requestsPerMinute) / 60.0

	rl := &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		r:        rate.Limit(rps),
		b:        burst,
	}

	// Clean up old visitors every 3 minutes
	go rl.cleanupVisitors()

	return rl
}

// GetLimiter returns the rate limiter for the given IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.r, rl.b)
		rl.visitors[ip] = limiter
	}

	return limiter
}

// cleanupVisitors removes inactive visitors every 3 minutes
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(3 * time.Minute)

		rl.mu.Lock()
		// A limiter back at full tokens has been idle; drop it
		for ip, limiter := range rl.visitors {
			if limiter.Tokens() >= float64(rl.b) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware creates an Echo middleware for rate limiting
func (rl *RateLimiter) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			limiter := rl.GetLimiter(ip)

			if !limiter.Allow() {
				return apierrors.RateLimitError(c, 60)
			}

			return next(c)
		}
	}
}

// WindowLimiter checks whether a keyed event fits in a sliding window.
// Implemented by the Redis cache client.
type WindowLimiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SlidingWindowMiddleware rate-limits an endpoint per client IP using a
// shared sliding window. Used for the chat and form caps so the limits
// hold across API replicas. Limiter outages fail open.
func SlidingWindowMiddleware(limiter WindowLimiter, prefix string, limit int, window time.Duration) echo.MiddlewareFunc {
	retryAfter := int(window.Seconds())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			ok, err := limiter.AllowRequest(c.Request().Context(), prefix+":"+ip, limit, window)
			if err != nil {
				log.Printf("[RATE LIMIT] check failed for %s: %v", prefix, err)
				return next(c)
			}
			if !ok {
				return apierrors.RateLimitError(c, retryAfter)
			}

			return next(c)
		}
	}
}
