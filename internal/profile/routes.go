package profile

import (
	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/middleware"
)

// RegisterRoutes mounts the profile API. Every route requires an
// authenticated session; the Auth middleware is installed globally by the
// app, so only the rejection gate is added here.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/profile", middleware.RequireAuth)

	g.GET("", h.Me)
	g.GET("/ranks", h.MyRanks)
	g.PATCH("/username", h.UpdateUsername)
	g.POST("/solves", h.RecordSolve)
}
