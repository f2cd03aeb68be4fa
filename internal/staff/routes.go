package staff

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/middleware"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// RegisterRoutes mounts the staff panel API. Every route sits behind the
// staff gate; mutations are additionally rate-limited since they are all
// privileged writes.
func RegisterRoutes(e *echo.Echo, h *Handler, profiles profile.Service) {
	g := e.Group("/api/staff", middleware.RequireAuth, RequireStaff(profiles))

	g.GET("/users", h.ListUsers)
	g.GET("/users/stream", h.StreamUsers)
	g.GET("/events", h.ListEvents)

	mutate := middleware.RateLimit(30, time.Minute)
	g.PUT("/users/:id/role", h.UpdateRole, mutate)
	g.POST("/users/:id/ban", h.ToggleBan, mutate)
	g.POST("/users/:id/password", h.ResetPassword, mutate)
}
