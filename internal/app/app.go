// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance) and wires together the identity, profile, session, and
// staff components.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/config"
	"github.com/TheRockzi/hackacademy/internal/identity"
	"github.com/TheRockzi/hackacademy/internal/middleware"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all components.
	DB *sql.DB

	// Redis is the Redis client shared for sessions, change feeds, and
	// session-event delivery.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Identity is the credential and session backend.
	Identity identity.Provider

	// Profiles is the profile store shared by the session and staff layers.
	Profiles profile.Repository
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. Critical for rate limiting and
	// the security event log.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Echo:     e,
		Identity: identity.NewProvider(identity.NewCredentialRepository(db), rdb, cfg.Auth.SessionTTL),
		Profiles: profile.NewRepository(db, rdb),
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- the SPA frontend is served from its own origin in development.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{a.Config.BaseURL},
		AllowCredentials: true,
	}))

	// Session resolution -- attaches the identity for the request's token.
	// Never rejects on its own; auth gates live on the route groups.
	a.Echo.Use(middleware.Auth(a.Identity))
}

// Start begins listening for HTTP requests. Blocks until shutdown.
func (a *App) Start() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.Config.Port))
}

// errorHandler is the custom Echo error handler. The API is JSON-only, so
// every error becomes a JSON body with the status, a machine-readable type,
// and a user-safe message.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	errType := "internal_error"
	message := "An unexpected error occurred"

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		errType = appErr.Type
		message = appErr.Message

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in HTTP errors (e.g., 404 from the router).
		code = echoErr.Code
		errType = http.StatusText(code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	default:
		// Truly unexpected error -- log it, tell the client nothing useful.
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	c.JSON(code, map[string]string{
		"type":    errType,
		"message": message,
	})
}
