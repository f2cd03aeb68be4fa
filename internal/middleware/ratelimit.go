package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimit caps requests per client IP to maxRequests within a fixed
// window, tracked in memory. Login, registration, and the staff mutation
// routes each get their own instance so one endpoint's budget cannot be
// burned through another. Exceeding the cap yields a 429 through the
// central error handler.
//
// State is per-process. Running more than one replica multiplies the
// effective limit by the replica count, which is acceptable for an
// abuse brake.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	entries := make(map[string]*rateLimitEntry)

	// Drop stale entries periodically so the map does not grow without
	// bound under IP churn.
	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			now := time.Now()
			for ip, entry := range entries {
				if now.Sub(entry.windowStart) > window*2 {
					delete(entries, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			entry, ok := entries[ip]
			if !ok || now.Sub(entry.windowStart) > window {
				entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
				mu.Unlock()
				return next(c)
			}

			entry.count++
			if entry.count > maxRequests {
				mu.Unlock()
				return apperror.NewTooManyRequests("rate limit exceeded, try again later")
			}
			mu.Unlock()

			return next(c)
		}
	}
}
