package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/model"
)

// RequireRole returns a middleware that aborts with 403 unless the
// authenticated user's global role is one of the given values.  It assumes
// JWTAuth already stored the role in the context.
func RequireRole(roles ...model.UserRole) echo.MiddlewareFunc {
	allowed := make(map[model.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(model.UserRole)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
