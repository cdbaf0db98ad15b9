// Package handler implements the HTTP endpoints.  Handlers bind the
// request, derive the principal from the JWT context set by middleware,
// consult the access resolver and delegate persistence to repositories.
package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/access"
	"github.com/teststack/test-management-service/internal/middleware"
	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/repository"
)

// reqCtx derives a bounded context for database work from the request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// getUserID extracts the authenticated user's id from the context.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := c.Get(middleware.CtxUserID).(uint64); ok {
		return id, nil
	}
	return 0, errors.New("missing user_id in context")
}

// principal builds the access principal from the JWT context values.
func principal(c echo.Context) (access.Principal, error) {
	id, err := getUserID(c)
	if err != nil {
		return access.Principal{}, err
	}
	role, ok := c.Get(middleware.CtxRole).(model.UserRole)
	if !ok {
		return access.Principal{}, errors.New("missing role in context")
	}
	return access.Principal{ID: id, Role: role}, nil
}

// currentEmail returns the email claim, or "" when absent.
func currentEmail(c echo.Context) string {
	email, _ := c.Get(middleware.CtxEmail).(string)
	return email
}

// pathUint parses a numeric path parameter.
func pathUint(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// pathInt parses a numeric path parameter as int.
func pathInt(c echo.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}

// formUint parses a numeric multipart/form field.
func formUint(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.FormValue(name), 10, 64)
}

// writeErr maps repository errors to the error taxonomy: sentinel errors
// become 403/409, missing rows become 404, anything else is a 500 with a
// generic message so internals never leak to clients.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		c.Logger().Errorf("handler: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// unauthorized is the shared 401 response for a broken principal.
func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// forbidden is the shared 403 response for a failed access check.
func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}
