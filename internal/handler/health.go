package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health verifies the service is running for load balancers and monitors.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
