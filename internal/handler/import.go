package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/access"
	"github.com/teststack/test-management-service/internal/importer"
	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/queue"
	"github.com/teststack/test-management-service/internal/repository"
	"github.com/teststack/test-management-service/internal/service"
)

// Batch imports can hold a connection for thousands of rows, so they get
// a wider deadline than the regular request budget.
const importTimeout = 60 * time.Second

// ImportHandler serves the CSV import endpoints and the run history.
type ImportHandler struct {
	Importer *importer.Importer
	Runs     *repository.ImportRepo
	Access   *access.Resolver
}

func NewImportHandler(im *importer.Importer, runs *repository.ImportRepo, a *access.Resolver) *ImportHandler {
	return &ImportHandler{Importer: im, Runs: runs, Access: a}
}

// ImportTestCases runs a test case CSV against a group.  The caller needs
// Designer capability on the target group.  The multipart form carries
// the file under "file" and the group id under "test_group_id".
func (h *ImportHandler) ImportTestCases(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := formUint(c, "test_group_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test_group_id"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), importTimeout)
	defer cancel()

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	src, err := fh.Open()
	if err != nil {
		return writeErr(c, err)
	}
	defer src.Close()

	res, err := h.Importer.ImportTestCases(ctx, groupID, fh.Filename, currentEmail(c), src)
	h.publishCompleted(ctx, fh.Filename, model.ImportTypeTestCase, currentEmail(c), res)
	if err != nil {
		// A parse failure still produced a finalized run record.
		if res != nil {
			return c.JSON(http.StatusBadRequest, res)
		}
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ImportUsers runs a user CSV.  Admin only; the route guard enforces the
// global role.
func (h *ImportHandler) ImportUsers(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), importTimeout)
	defer cancel()

	src, err := fh.Open()
	if err != nil {
		return writeErr(c, err)
	}
	defer src.Close()

	res, err := h.Importer.ImportUsers(ctx, fh.Filename, currentEmail(c), src)
	h.publishCompleted(ctx, fh.Filename, model.ImportTypeUser, currentEmail(c), res)
	if err != nil {
		if res != nil {
			return c.JSON(http.StatusBadRequest, res)
		}
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ImportHandler) publishCompleted(ctx context.Context, fileName string, typ model.ImportType, executor string, res *importer.Result) {
	if res == nil {
		return
	}
	status := model.ImportStatusCompleted
	if res.ErrorCount > 0 {
		status = model.ImportStatusError
	}
	// Audit delivery is best effort; the run record is the source of truth.
	_ = service.PublishImportCompleted(ctx, queue.ImportCompletedEvent{
		ImportResultID: res.RunID,
		FileName:       fileName,
		ImportType:     int(typ),
		Status:         int(status),
		SuccessCount:   res.SuccessCount,
		ErrorCount:     res.ErrorCount,
		ExecutorName:   executor,
		FinishedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

// ListImportRuns returns the latest 100 import runs, newest first.
func (h *ImportHandler) ListImportRuns(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	runs, err := h.Runs.ListRuns(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"import_results": runs})
}

// ListImportErrors returns the per-row failure details of one run.
func (h *ImportHandler) ListImportErrors(c echo.Context) error {
	runID, err := pathUint(c, "importId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid import id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	errs, err := h.Runs.ErrorsForRun(ctx, runID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"errors": errs})
}
