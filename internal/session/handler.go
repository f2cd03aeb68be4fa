package session

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/identity"
	"github.com/TheRockzi/hackacademy/internal/middleware"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// eventLoginFailed is the security-log event type for rejected sign-ins.
const eventLoginFailed = "auth.login_failed"

// AuditFunc records an authentication security event. A nil AuditFunc
// disables auditing.
type AuditFunc func(ctx context.Context, eventType, userID, ip string)

// Handler serves the authentication and session API. Each request gets its
// own Manager; the websocket stream keeps one alive for the connection's
// lifetime.
type Handler struct {
	provider          identity.Provider
	profiles          profile.Service
	minPasswordLength int
	sessionMaxAge     int
	audit             AuditFunc
	upgrader          websocket.Upgrader
}

// NewHandler creates the session handler. sessionMaxAge is the cookie
// lifetime in seconds.
func NewHandler(provider identity.Provider, profiles profile.Service, minPasswordLength, sessionMaxAge int, audit AuditFunc, checkOrigin func(*http.Request) bool) *Handler {
	return &Handler{
		provider:          provider,
		profiles:          profiles,
		minPasswordLength: minPasswordLength,
		sessionMaxAge:     sessionMaxAge,
		audit:             audit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) newManager() *Manager {
	return NewManager(h.provider, h.profiles, h.minPasswordLength)
}

// RegisterRequest is the POST /api/auth/register payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Register creates an account and signs the client in
// (POST /api/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	m := h.newManager()
	defer m.Close()

	state, err := m.SignUp(c.Request().Context(), req.Email, req.Password, req.Username)
	if err != nil {
		return err
	}

	middleware.SetSessionCookie(c, m.Token(), h.sessionMaxAge)

	return c.JSON(http.StatusCreated, stateResponse(state, m.Token()))
}

// LoginRequest is the POST /api/auth/login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password (POST /api/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	m := h.newManager()
	defer m.Close()

	state, err := m.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if h.audit != nil {
			h.audit(c.Request().Context(), eventLoginFailed, "", c.RealIP())
		}
		return err
	}

	middleware.SetSessionCookie(c, m.Token(), h.sessionMaxAge)

	return c.JSON(http.StatusOK, stateResponse(state, m.Token()))
}

// Logout revokes the caller's session (POST /api/auth/logout). The cookie is
// only cleared once the provider confirms revocation.
func (h *Handler) Logout(c echo.Context) error {
	token := middleware.ExtractSessionToken(c)
	if token == "" {
		return c.NoContent(http.StatusNoContent)
	}

	m := h.newManager()
	defer m.Close()

	if _, err := m.Resolve(c.Request().Context(), token); err != nil {
		return err
	}
	if err := m.SignOut(c.Request().Context()); err != nil {
		return err
	}

	middleware.ClearSessionCookie(c)

	return c.NoContent(http.StatusNoContent)
}

// Current resolves the caller's token to a full session snapshot
// (GET /api/session). Anonymous callers get an empty state, not an error.
func (h *Handler) Current(c echo.Context) error {
	m := h.newManager()
	defer m.Close()

	state, err := m.Resolve(c.Request().Context(), middleware.ExtractSessionToken(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// Stream upgrades to a websocket and pushes a session snapshot on every
// state change (GET /api/session/stream). The first message is the current
// state; a sign-out elsewhere delivers the cleared state.
func (h *Handler) Stream(c echo.Context) error {
	token := middleware.ExtractSessionToken(c)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	m := h.newManager()
	defer m.Close()

	updates, unsubscribe := m.Updates()
	defer unsubscribe()

	if err := m.Activate(ctx, token); err != nil {
		return conn.WriteJSON(errorFrame(err))
	}

	if err := conn.WriteJSON(m.Snapshot()); err != nil {
		return nil
	}

	// Reads only surface client disconnects; no inbound messages are expected.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(state); err != nil {
				return nil
			}
		}
	}
}

// stateResponse bundles a session snapshot with its bearer token for
// non-cookie clients.
func stateResponse(state State, token string) map[string]any {
	return map[string]any{
		"session": state,
		"token":   token,
	}
}

func errorFrame(err error) map[string]string {
	msg := "session stream failed"
	if appErr, ok := err.(*apperror.AppError); ok {
		msg = appErr.Message
	}
	return map[string]string{"error": msg}
}
