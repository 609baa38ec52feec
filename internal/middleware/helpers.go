package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/locale"
)

// localeKey is the Echo context key a handler or auth middleware may set
// to pin the response locale (e.g. from the user's stored preference).
const localeKey = "locale"

// SetLocale pins the locale for the rest of the request.
func SetLocale(c echo.Context, loc string) {
	c.Set(localeKey, loc)
}

// RequestLocale returns the pinned locale, or negotiates one from the
// Accept-Language header.
func RequestLocale(c echo.Context) string {
	if loc, ok := c.Get(localeKey).(string); ok && loc != "" {
		return locale.Negotiate(loc)
	}
	return locale.Negotiate(c.Request().Header.Get("Accept-Language"))
}

// IsAPI returns true for requests under the versioned JSON API.
func IsAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}
