package routes

import (
	"laporan_ramadhan/controllers"
	"laporan_ramadhan/middleware"

	"github.com/gofiber/fiber/v2"
)

// Controllers bundles the handlers SetupRoutes mounts.
type Controllers struct {
	Auth     *controllers.AuthController
	Identity *controllers.IdentityController
	Sheets   *controllers.SheetController
	Health   *controllers.HealthController

	LoginRateLimit int
	// EnableMock exposes /api/identity/student/mock; never set in production.
	EnableMock bool
}

// SetupRoutes configures all application routes. Teacher-only access is enforced by
// middleware.TeacherGate, which must already be installed on the app.
func SetupRoutes(app *fiber.App, ctl Controllers) {
	app.Get("/health", ctl.Health.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Authentication routes
	auth := api.Group("/auth")
	auth.Post("/login", middleware.LoginRateLimiter(ctl.LoginRateLimit), ctl.Auth.Login)
	auth.Post("/logout", ctl.Auth.Logout)
	auth.Get("/session", ctl.Auth.Session)

	// Student identity lookup
	identity := api.Group("/identity")
	identity.Get("/student", ctl.Identity.GetStudent)
	if ctl.EnableMock {
		identity.Get("/student/mock", ctl.Identity.GetMockStudent)
	}

	// Report sheets; everything except POST is teacher-only
	sheet := api.Group("/sheet")
	sheet.Post("/", ctl.Sheets.Submit)
	sheet.Get("/", ctl.Sheets.List)
	sheet.Get("/rombel", ctl.Sheets.Rombel)
	sheet.Get("/summary", ctl.Sheets.Summary)
	sheet.Get("/export", ctl.Sheets.Export)
}

// SetupStaticRoutes configures static file serving
func SetupStaticRoutes(app *fiber.App) {
	app.Static("/", "./public")
}
