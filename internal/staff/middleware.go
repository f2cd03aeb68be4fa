package staff

import (
	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/middleware"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

const actorContextKey = "staff_actor"

// RequireStaff loads the caller's profile and rejects non-staff and banned
// accounts. The loaded profile is stored in the request context so handlers
// don't fetch it twice.
func RequireStaff(profiles profile.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := middleware.CurrentIdentity(c)
			if id == nil {
				return apperror.NewUnauthorized("authentication required")
			}

			p, err := profiles.Get(c.Request().Context(), id.ID)
			if err != nil {
				return err
			}
			if p.IsBanned {
				return apperror.NewForbidden("account is banned")
			}
			if !p.IsStaff || p.StaffRole == "" {
				return apperror.NewForbidden("staff access required")
			}

			c.Set(actorContextKey, p)
			return next(c)
		}
	}
}

// Actor returns the staff profile RequireStaff stored for this request.
func Actor(c echo.Context) *profile.Profile {
	p, _ := c.Get(actorContextKey).(*profile.Profile)
	return p
}
