// Package middleware holds the Echo middleware shared across route groups:
// request logging, panic recovery, rate limiting, security headers, CORS,
// proxy IP extraction, and session resolution. Registration order lives in
// internal/app/app.go.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger emits one structured slog line per request once the handler
// chain returns, so the status code and latency are known. When the Auth
// middleware resolved a session first, the line carries the user ID, which
// is what ties request logs to the security-event audit trail.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			}
			if req.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", req.URL.RawQuery))
			}
			if ident := CurrentIdentity(c); ident != nil {
				attrs = append(attrs, slog.String("user_id", ident.ID))
			}

			level := slog.LevelInfo
			switch {
			case res.Status >= 500:
				level = slog.LevelError
			case res.Status >= 400:
				level = slog.LevelWarn
			}

			slog.LogAttrs(req.Context(), level, "request", attrs...)

			return err
		}
	}
}
