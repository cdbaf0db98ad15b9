// Package router wires the HTTP endpoints to their handlers and
// middleware.  Public routes carry no auth; everything under /v1 except
// the auth group requires a valid access token, and /v1/admin adds the
// admin role on top.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/handler"
	"github.com/teststack/test-management-service/internal/middleware"
	"github.com/teststack/test-management-service/internal/model"
)

// RegisterRoutes registers the unauthenticated routes.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints.  The login limiter is the
// token-bucket middleware; pass nil-safe pass-through when rate limiting
// is disabled.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, loginLimiter)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterAPI registers the authenticated test management endpoints.
// Group-level permissions are enforced inside the handlers through the
// access resolver, so the only route-level guard here is the JWT.  The
// report endpoint additionally runs through the response cache.
func RegisterAPI(e *echo.Echo, g *handler.GroupHandler, t *handler.TagHandler, up *handler.UploadHandler, im *handler.ImportHandler, jwtSecret string, reportCache echo.MiddlewareFunc) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	auth.GET("/tags", t.ListTags)
	auth.POST("/upload", up.Upload)

	auth.GET("/test-groups", g.ListGroups)
	auth.POST("/test-groups", g.CreateGroup)
	auth.GET("/test-groups/:groupId", g.GetGroup)
	auth.PUT("/test-groups/:groupId", g.UpdateGroup)
	auth.DELETE("/test-groups/:groupId", g.DeleteGroup)
	auth.GET("/test-groups/:groupId/report", g.GetReport, reportCache)

	auth.GET("/test-groups/:groupId/cases", g.ListCases)
	auth.POST("/test-groups/:groupId/cases", g.CreateCase)
	auth.GET("/test-groups/:groupId/cases/:tid", g.GetCase)
	auth.PUT("/test-groups/:groupId/cases/:tid", g.UpdateCase)
	auth.DELETE("/test-groups/:groupId/cases/:tid", g.DeleteCase)

	auth.POST("/test-groups/:groupId/cases/:tid/files", g.UploadCaseFiles)
	auth.GET("/test-groups/:groupId/cases/:tid/files/:fileType/:fileNo", g.DownloadCaseFile)
	auth.DELETE("/test-groups/:groupId/cases/:tid/files", g.DeleteCaseFile)

	auth.GET("/test-groups/:groupId/cases/:tid/results", g.ListResults)
	auth.POST("/test-groups/:groupId/cases/:tid/results/:testCaseNo", g.SubmitResult)
	auth.GET("/test-groups/:groupId/cases/:tid/evidences/:testCaseNo/:historyCount/:evidenceNo", g.DownloadEvidence)
	auth.DELETE("/test-groups/:groupId/cases/:tid/evidences/:testCaseNo/:historyCount/:evidenceNo", g.DeleteEvidence)

	auth.POST("/import/test-cases", im.ImportTestCases)
}

// RegisterAdmin registers the admin-only endpoints: user management, user
// CSV import/export and the import run history.
func RegisterAdmin(e *echo.Echo, adm *handler.AdminHandler, im *handler.ImportHandler, jwtSecret string) {
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.UserRoleAdmin))

	admin.GET("/users", adm.ListUsers)
	admin.POST("/users", adm.CreateUser)
	admin.GET("/users/export", adm.ExportUsers)
	admin.GET("/users/:userId", adm.GetUser)
	admin.PUT("/users/:userId", adm.UpdateUser)
	admin.DELETE("/users/:userId", adm.DeleteUser)

	admin.POST("/import/users", im.ImportUsers)
	admin.GET("/import-results", im.ListImportRuns)
	admin.GET("/import-results/:importId/errors", im.ListImportErrors)
}
