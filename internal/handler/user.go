package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/config"
	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/repository"
)

// AdminHandler serves the admin-only user management endpoints.  Routes
// mounting it must already be guarded by the admin role middleware; the
// handler itself does not re-check the global role.
type AdminHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAdminHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Users: u, Tokens: t}
}

type createUserReq struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	UserRole   int      `json:"user_role"`
	Department string   `json:"department"`
	Company    string   `json:"company"`
	Tags       []string `json:"tags"`
}

type updateUserReq struct {
	Password   string   `json:"password"`
	UserRole   int      `json:"user_role"`
	Department string   `json:"department"`
	Company    string   `json:"company"`
	Tags       []string `json:"tags"`
}

// ListUsers returns non-deleted users with their tags, filtered by the
// optional email, department and tag_id query parameters.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	f := repository.UserFilter{
		Email:      strings.TrimSpace(c.QueryParam("email")),
		Department: strings.TrimSpace(c.QueryParam("department")),
	}
	if raw := c.QueryParam("tag_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tag_id"})
		}
		f.TagID = id
	}

	users, err := h.Users.List(ctx, f)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// GetUser returns one user with its tags.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathUint(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	tags, err := h.Users.TagsForUser(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id": u.ID, "email": u.Email, "user_role": int(u.UserRole),
		"department": u.Department, "company": u.Company, "tags": tags,
	})
}

// CreateUser registers a new account with its tag assignments.  Tags are
// resolved by name and created on first use.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	if !model.ValidUserRole(req.UserRole) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_role"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, model.UserRole(req.UserRole),
		req.Department, req.Company, req.Tags, h.Cfg.BcryptCost)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// UpdateUser rewrites role, department, company and the tag set.  An
// empty password leaves the stored credential untouched.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathUint(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !model.ValidUserRole(req.UserRole) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_role"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return writeErr(c, err)
	}
	if err := h.Users.Update(ctx, id, model.UserRole(req.UserRole),
		req.Department, req.Company, req.Password, req.Tags, h.Cfg.BcryptCost); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}

// DeleteUser soft-deletes the account and revokes all of its refresh
// tokens so open sessions stop at the next refresh.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := pathUint(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		return writeErr(c, err)
	}
	if err := h.Users.SoftDelete(ctx, id); err != nil {
		return writeErr(c, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

// ExportUsers streams all non-deleted users as a CSV download.  The
// password column is emitted empty; the file round-trips through the
// user importer, which keeps existing credentials when the column is
// blank.  Tag names are comma-joined inside a single cell.
func (h *AdminHandler) ExportUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, repository.UserFilter{})
	if err != nil {
		return writeErr(c, err)
	}

	fileName := fmt.Sprintf("users_export_%s.csv", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"email", "password", "user_role", "department", "company", "tags"}); err != nil {
		return err
	}
	for _, u := range users {
		names := make([]string, 0, len(u.Tags))
		for _, t := range u.Tags {
			names = append(names, t.Name)
		}
		rec := []string{
			u.Email, "", strconv.Itoa(int(u.UserRole)),
			u.Department, u.Company, strings.Join(names, ","),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
