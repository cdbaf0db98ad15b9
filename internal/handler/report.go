package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/report"
)

// GetReport assembles the progress report for one test group: per-case
// contents joined with their current results, plus aggregate pass rate
// and progress figures.
func (h *GroupHandler) GetReport(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Access.CanView(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return forbidden(c)
	}

	group, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	withChildren, err := h.Cases.ListByGroup(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	cases := make([]model.TestCase, 0, len(withChildren))
	for _, cw := range withChildren {
		cases = append(cases, cw.TestCase)
	}
	contents, err := h.Cases.ContentsForGroup(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	results, err := h.Results.ResultsForGroup(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}

	return c.JSON(http.StatusOK, report.Build(group, cases, contents, results))
}
