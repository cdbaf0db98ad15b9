package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/config"
	"github.com/teststack/test-management-service/internal/repository"
	"github.com/teststack/test-management-service/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.  There is no
// self-service registration; accounts are provisioned by admins or the
// user import.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	UserRole   int    `json:"user_role"`
	Department string `json:"department"`
	Company    string `json:"company"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Login verifies credentials and issues an access/refresh token pair.
// Unknown email and wrong password produce the same response so the
// endpoint cannot be used to probe for accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !utils.VerifyPassword(u.PasswordHash, req.Password)) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return writeErr(c, err)
	}

	return h.issueTokens(c, u.ID)
}

// issueTokens mints a fresh pair for the user and stores the refresh hash.
func (h *AuthHandler) issueTokens(c echo.Context, userID uint64) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return writeErr(c, err)
	}

	acc, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.UserRole, u.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeErr(c, err)
	}
	ref, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(ref.Raw), ref.Exp); err != nil {
		return writeErr(c, err)
	}

	return c.JSON(http.StatusOK, authResp{
		User: userPart{
			ID: u.ID, Email: u.Email, UserRole: int(u.UserRole),
			Department: u.Department, Company: u.Company,
		},
		Access:  tokenPart{Token: acc.Token, Expires: acc.Exp},
		Refresh: tokenPart{Token: ref.Raw, Expires: ref.Exp},
	})
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair is issued.  An invalid or reused token yields 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	hash := utils.HashRefreshRaw(req.RefreshToken)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeErr(c, err)
	}

	return h.issueTokens(c, userID)
}

// RefreshAccess issues a new access token only, leaving the presented
// refresh token valid.  The role claim is re-read from the database so a
// role change takes effect here too.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(req.RefreshToken))
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return writeErr(c, err)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return writeErr(c, err)
	}
	acc, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.UserRole, u.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: acc.Token, Expires: acc.Exp},
	})
}

// Logout revokes the presented refresh token.  Revoking an unknown token
// still succeeds; logout is idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(req.RefreshToken)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated user's profile with tags.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return writeErr(c, err)
	}
	tags, err := h.Users.TagsForUser(ctx, userID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         u.ID,
		"email":      u.Email,
		"user_role":  int(u.UserRole),
		"department": u.Department,
		"company":    u.Company,
		"tags":       tags,
	})
}
