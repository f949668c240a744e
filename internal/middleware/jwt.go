package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/box-office/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer operator token
// and injects the token's subject and role claims into the request
// context, under "subject" and "role".  An empty secret disables the check.
func JWTAuth(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
			}
			claims, err := utils.ParseOperatorToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
			}
			c.Set("subject", claims.Subject)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

// OperatorOnly chains JWTAuth and RequireRole(OPERATOR).  With an empty
// secret the routes are open.
func OperatorOnly(secret string) []echo.MiddlewareFunc {
	if secret == "" {
		return nil
	}
	return []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(utils.RoleOperator)}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
