package handler

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/storage"
)

// UploadHandler stores ad hoc files, typically evidence screenshots,
// under the temp prefix.  Clients attach the returned key to a result
// submission; the storage lifecycle rule reclaims keys that never get
// referenced.
type UploadHandler struct {
	Store storage.Store
}

func NewUploadHandler(st storage.Store) *UploadHandler { return &UploadHandler{Store: st} }

// Upload accepts one multipart file under "file" plus an optional
// "folder" form field and returns the stored key with a one hour
// download URL.
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}

	folder := strings.Trim(c.FormValue("folder"), "/")
	prefix := "temp"
	if folder != "" && !strings.Contains(folder, "..") {
		prefix = path.Join("temp", folder)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	src, err := fh.Open()
	if err != nil {
		return writeErr(c, err)
	}
	defer src.Close()

	key, err := h.Store.Put(ctx, storage.BuildKey(prefix, fh.Filename), fh.Header.Get("Content-Type"), src)
	if err != nil {
		return writeErr(c, err)
	}
	url, err := h.Store.PresignGet(ctx, key, time.Hour)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"key": key, "url": url})
}
