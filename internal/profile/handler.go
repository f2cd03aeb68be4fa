package profile

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/middleware"
	"github.com/TheRockzi/hackacademy/internal/rank"
)

// Handler serves the profile JSON API. Handlers are thin: bind, call the
// service, shape the response.
type Handler struct {
	service Service
}

// NewHandler creates the profile handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// profileResponse is a profile plus its derived rank titles.
type profileResponse struct {
	*Profile
	Ranks rank.Ranks `json:"ranks"`
}

func toResponse(p *Profile) profileResponse {
	return profileResponse{Profile: p, Ranks: p.Ranks()}
}

// Me returns the caller's profile, creating it on first access
// (GET /api/profile).
func (h *Handler) Me(c echo.Context) error {
	id := middleware.CurrentIdentity(c)

	p, err := h.service.Ensure(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toResponse(p))
}

// MyRanks returns only the caller's derived rank titles
// (GET /api/profile/ranks).
func (h *Handler) MyRanks(c echo.Context) error {
	id := middleware.CurrentIdentity(c)

	p, err := h.service.Ensure(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, p.Ranks())
}

// UpdateUsernameRequest is the PATCH /api/profile/username payload.
type UpdateUsernameRequest struct {
	Username string `json:"username"`
}

// UpdateUsername changes the caller's username (PATCH /api/profile/username).
func (h *Handler) UpdateUsername(c echo.Context) error {
	var req UpdateUsernameRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	id := middleware.CurrentIdentity(c)

	p, err := h.service.UpdateUsername(c.Request().Context(), id.ID, req.Username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toResponse(p))
}

// RecordSolveRequest is the POST /api/profile/solves payload.
type RecordSolveRequest struct {
	Category string `json:"category"`
}

// RecordSolve credits the caller with a solved challenge in one category
// (POST /api/profile/solves).
func (h *Handler) RecordSolve(c echo.Context) error {
	var req RecordSolveRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	id := middleware.CurrentIdentity(c)

	p, err := h.service.RecordSolve(c.Request().Context(), id.ID, req.Category)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toResponse(p))
}
