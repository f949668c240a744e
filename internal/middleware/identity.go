package middleware

import "github.com/labstack/echo/v4"

// subject returns the authenticated operator stored by JWTAuth, or "anon"
// for unauthenticated callers such as ticket buyers.
func subject(c echo.Context) string {
	if s, ok := c.Get("subject").(string); ok && s != "" {
		return s
	}
	return "anon"
}
