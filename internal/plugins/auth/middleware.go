package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/middleware"
)

// Context keys for the authenticated user. Other plugins read them through
// GetUser and GetUserID.
const (
	contextKeyUser   = "auth_user"
	contextKeyUserID = "auth_user_id"
)

// TokenFromRequest returns the session token carried by r. The session
// cookie wins over an Authorization bearer header when both are present.
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), false
	}
	return "", false
}

// RequireAuth returns middleware that verifies the request's session token
// and stores the freshly loaded user in the context. Failures are returned
// as the auth sentinel errors, which the app error handler turns into a
// generic 401. A rejected cookie is cleared.
func RequireAuth(authn *Authenticator, secureCookies bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, fromCookie := TokenFromRequest(c.Request())

			user, err := authn.Verify(c.Request().Context(), token)
			if err != nil {
				if fromCookie && isAuthFailure(err) {
					clearSessionCookie(c, secureCookies)
				}
				return err
			}

			SetUser(c, user)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(authn *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, _ := TokenFromRequest(c.Request())
			if token != "" {
				if user, err := authn.Verify(c.Request().Context(), token); err == nil {
					SetUser(c, user)
				}
			}
			return next(c)
		}
	}
}

// SetUser stores user as the request's authenticated identity. Only
// authentication middleware should call it outside tests.
func SetUser(c echo.Context, user *User) {
	c.Set(contextKeyUser, user)
	c.Set(contextKeyUserID, user.ID)
	if user.Locale != "" {
		middleware.SetLocale(c, user.Locale)
	}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUserNotFound)
}

// --- Exported getters for other plugins ---

// GetUser returns the authenticated user, or nil if RequireAuth did not run.
func GetUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID returns the authenticated user's ID, or "".
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}
