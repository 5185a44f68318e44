package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated caller set by JWTAuth, or "" on
// unauthenticated routes.
func UserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}

// currentUserID is UserID with a placeholder for rate-limit keys.
func currentUserID(c echo.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "anon"
}
