package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/identity"
)

// SessionCookieName is the HTTP cookie carrying the session token for
// browser clients. API clients use the Authorization header instead.
const SessionCookieName = "hackacademy_session"

const (
	identityContextKey = "identity"
	tokenContextKey    = "session_token"
)

// Auth resolves the request's session token to an identity and stores both
// in the request context. It never rejects: anonymous requests pass through
// with no identity set, so public routes can share the middleware chain.
func Auth(provider identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ExtractSessionToken(c)
			if token == "" {
				return next(c)
			}

			id, err := provider.GetSession(c.Request().Context(), token)
			if err != nil {
				return err
			}
			if id != nil {
				c.Set(identityContextKey, id)
				c.Set(tokenContextKey, token)
			}

			return next(c)
		}
	}
}

// RequireAuth rejects requests that Auth did not resolve to an identity.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentIdentity(c) == nil {
			return apperror.NewUnauthorized("authentication required")
		}
		return next(c)
	}
}

// CurrentIdentity returns the authenticated identity, or nil for anonymous
// requests.
func CurrentIdentity(c echo.Context) *identity.Identity {
	id, _ := c.Get(identityContextKey).(*identity.Identity)
	return id
}

// CurrentToken returns the session token Auth validated, or "".
func CurrentToken(c echo.Context) string {
	token, _ := c.Get(tokenContextKey).(string)
	return token
}

// ExtractSessionToken pulls the raw session token from the Authorization
// header (preferred) or the session cookie.
func ExtractSessionToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
	}

	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie writes the session cookie for browser clients.
func SetSessionCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c echo.Context) {
	SetSessionCookie(c, "", -1)
}
