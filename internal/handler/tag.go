package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/repository"
)

// TagHandler serves the shared tag catalog.
type TagHandler struct {
	Tags *repository.TagRepo
}

func NewTagHandler(t *repository.TagRepo) *TagHandler { return &TagHandler{Tags: t} }

// ListTags returns all non-deleted tags, available to any authenticated
// user so group and user forms can offer them.
func (h *TagHandler) ListTags(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	tags, err := h.Tags.List(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tags": tags})
}
