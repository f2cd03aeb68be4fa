package session

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/middleware"
)

// RegisterRoutes mounts the auth and session API. Auth endpoints are public
// and rate-limited against brute-force and credential stuffing: 10 login
// attempts per IP per minute, 5 registrations.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/auth/register", h.Register, middleware.RateLimit(5, time.Minute))
	e.POST("/api/auth/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.POST("/api/auth/logout", h.Logout)

	e.GET("/api/session", h.Current)
	e.GET("/api/session/stream", h.Stream)
}
