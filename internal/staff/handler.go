package staff

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// Handler serves the staff panel API.
type Handler struct {
	service  Service
	roster   *Roster
	upgrader websocket.Upgrader
}

// NewHandler creates the staff handler.
func NewHandler(service Service, roster *Roster, checkOrigin func(*http.Request) bool) *Handler {
	return &Handler{
		service: service,
		roster:  roster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ListUsers returns the full roster (GET /api/staff/users).
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

// StreamUsers pushes a fresh roster snapshot over a websocket whenever any
// profile changes (GET /api/staff/users/stream).
func (h *Handler) StreamUsers(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	snapshots, err := h.roster.Watch(ctx)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": "roster unavailable"})
		return nil
	}

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
		case users, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(map[string]any{"users": users}); err != nil {
				return nil
			}
		}
	}
}

// UpdateRoleRequest is the PUT /api/staff/users/:id/role payload. An empty
// role removes staff status.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole changes a user's staff role (PUT /api/staff/users/:id/role).
// A policy denial is a 403 with decision "denied"; a backend failure is a
// 5xx, so clients can tell "you may not" from "try again".
func (h *Handler) UpdateRole(c echo.Context) error {
	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	decision, err := h.service.UpdateRole(
		c.Request().Context(), Actor(c), c.Param("id"), req.Role, c.RealIP())
	if err != nil {
		return err
	}

	status := http.StatusOK
	if decision == DecisionDenied {
		status = http.StatusForbidden
	}
	return c.JSON(status, map[string]any{"decision": decision})
}

// ToggleBan flips a user's ban flag (POST /api/staff/users/:id/ban).
func (h *Handler) ToggleBan(c echo.Context) error {
	decision, banned, err := h.service.ToggleBan(
		c.Request().Context(), Actor(c), c.Param("id"), c.RealIP())
	if err != nil {
		return err
	}

	if decision == DecisionDenied {
		return c.JSON(http.StatusForbidden, map[string]any{"decision": decision})
	}
	return c.JSON(http.StatusOK, map[string]any{"decision": decision, "banned": banned})
}

// ResetPasswordRequest is the POST /api/staff/users/:id/password payload.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword replaces a user's password (POST /api/staff/users/:id/password).
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	decision, err := h.service.ResetPassword(
		c.Request().Context(), Actor(c), c.Param("id"), req.Password, c.RealIP())
	if err != nil {
		return err
	}

	status := http.StatusOK
	if decision == DecisionDenied {
		status = http.StatusForbidden
	}
	return c.JSON(status, map[string]any{"decision": decision})
}

// ListEvents returns the paginated security log (GET /api/staff/events).
func (h *Handler) ListEvents(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	events, total, err := h.service.ListEvents(
		c.Request().Context(), c.QueryParam("type"), limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}
