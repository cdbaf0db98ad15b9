package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/storage"
)

// UploadCaseFiles stores multipart files for a case and registers them.
// The form carries a file_type field (0 control spec, 1 data flow) and one
// or more files.  Requires Designer capability on the group.
func (h *GroupHandler) UploadCaseFiles(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files selected"})
	}
	var fileType model.FileType
	if v := c.FormValue("file_type"); v == "0" {
		fileType = model.FileTypeControlSpec
	} else if v == "1" {
		fileType = model.FileTypeDataFlow
	} else {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_type must be 0 or 1"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}
	if _, err := h.Cases.Get(ctx, groupID, tid); err != nil {
		return writeErr(c, err)
	}

	prefix := fmt.Sprintf("test-cases/%d/%s", groupID, tid)
	records := make([]model.TestCaseFile, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return writeErr(c, err)
		}
		key, err := h.Store.Put(ctx, storage.BuildKey(prefix, fh.Filename), fh.Header.Get("Content-Type"), src)
		src.Close()
		if err != nil {
			return writeErr(c, err)
		}
		records = append(records, model.TestCaseFile{FileName: fh.Filename, FilePath: key})
	}

	saved, err := h.Cases.AddFiles(ctx, groupID, tid, fileType, records)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"files": saved})
}

// DownloadCaseFile redirects the client to a presigned URL for the file.
func (h *GroupHandler) DownloadCaseFile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")
	fileTypeNum, err := pathInt(c, "fileType")
	if err != nil || (fileTypeNum != 0 && fileTypeNum != 1) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file type"})
	}
	fileNo, err := pathInt(c, "fileNo")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file no"})
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

	key, err := h.Cases.FilePath(ctx, groupID, tid, model.FileType(fileTypeNum), fileNo)
	if err != nil {
		return writeErr(c, err)
	}
	url, err := h.Store.PresignGet(ctx, key, time.Hour)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// DeleteCaseFile soft-deletes one file row.  The stored object is kept; a
// deleted row just stops resolving.
func (h *GroupHandler) DeleteCaseFile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")

	var req struct {
		FileType *int `json:"file_type"`
		FileNo   *int `json:"file_no"`
	}
	if err := c.Bind(&req); err != nil || req.FileType == nil || req.FileNo == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_type and file_no are required"})
	}
	if *req.FileType != 0 && *req.FileType != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_type must be 0 or 1"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	if err := h.Cases.SoftDeleteFile(ctx, groupID, tid, model.FileType(*req.FileType), *req.FileNo); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
