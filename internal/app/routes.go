package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/profile"
	"github.com/TheRockzi/hackacademy/internal/session"
	"github.com/TheRockzi/hackacademy/internal/staff"
)

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each component's route registration function.
//
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container orchestration.
	e.GET("/healthz", a.healthz)

	// Websocket upgrades share the CORS origin policy.
	checkOrigin := a.websocketOriginCheck()

	profiles := profile.NewService(a.Profiles)
	securityEvents := staff.NewSecurityEventRepository(a.DB)

	// Failed sign-ins land in the same security log the staff panel reads.
	audit := func(ctx context.Context, eventType, userID, ip string) {
		err := securityEvents.Log(ctx, &staff.SecurityEvent{
			EventType: eventType,
			UserID:    userID,
			IPAddress: ip,
		})
		if err != nil {
			slog.Error("failed to record auth event",
				slog.String("event_type", eventType),
				slog.Any("error", err),
			)
		}
	}

	// Auth and session API (public: register, login, logout, session state).
	sessionHandler := session.NewHandler(
		a.Identity, profiles,
		a.Config.Auth.MinPasswordLength,
		int(a.Config.Auth.SessionTTL.Seconds()),
		audit,
		checkOrigin,
	)
	session.RegisterRoutes(e, sessionHandler)

	// Profile API (authenticated).
	profile.RegisterRoutes(e, profile.NewHandler(profiles))

	// Staff panel API (staff only).
	staffService := staff.NewService(
		a.Profiles,
		a.Identity,
		securityEvents,
		staff.Policy{AllowSameRank: a.Config.Staff.AllowSameRank},
		a.Config.Auth.MinPasswordLength,
	)
	staffHandler := staff.NewHandler(staffService, staff.NewRoster(a.Profiles), checkOrigin)
	staff.RegisterRoutes(e, staffHandler, profiles)
}

// healthz reports liveness plus backing-store connectivity.
func (a *App) healthz(c echo.Context) error {
	ctx := c.Request().Context()

	if err := a.DB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "database": err.Error(),
		})
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "redis": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// websocketOriginCheck allows same-origin upgrades plus the configured base
// URL, mirroring the CORS policy for regular requests.
func (a *App) websocketOriginCheck() func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == a.Config.BaseURL {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
