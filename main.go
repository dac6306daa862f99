package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"laporan_ramadhan/config"
	"laporan_ramadhan/controllers"
	"laporan_ramadhan/database"
	"laporan_ramadhan/database/seeders"
	"laporan_ramadhan/middleware"
	"laporan_ramadhan/routes"
	"laporan_ramadhan/services"
	"laporan_ramadhan/services/identity"
	"laporan_ramadhan/services/session"
	"laporan_ramadhan/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	setupLogging(cfg)

	database.Connect(cfg)
	defer database.Close()

	loc := utils.LoadLocation(cfg.ReportTimezone)
	sheetService := services.NewSheetService(database.DB, loc)

	recap := services.NewRecapScheduler(sheetService, cfg.RecapCron)
	if err := recap.Start(); err != nil {
		logrus.WithError(err).Fatal("Invalid RECAP_CRON")
	}
	defer recap.Stop()

	codec := session.NewCodec(cfg.CookieSecure)
	bridge := identity.NewBridge(identity.BridgeConfig{
		CSRFURL:   cfg.CSRFURL(),
		LoginURL:  cfg.LoginURL(),
		LogoutURL: cfg.LogoutURL(),
		Timeout:   cfg.IdentityTimeout,
	})

	var mock identity.StudentLookup
	if cfg.AppEnv != "production" {
		roster := identity.NewMockStudentLookup()
		mock = roster
		if cfg.AppEnv == "development" && cfg.IdentityMock {
			if err := seeders.SeedStudents(database.DB, roster.Students()); err != nil {
				logrus.WithError(err).Warn("Seeding development students failed")
			}
		}
	}
	var students identity.StudentLookup = identity.NewHTTPStudentLookup(cfg.StudentURL(), cfg.IdentityTimeout)
	if cfg.IdentityMock && mock != nil {
		logrus.Warn("IDENTITY_MOCK enabled, student lookups use the built-in roster")
		students = mock
	}
	students = identity.NewCachedStudentLookup(students, database.GetRedisClient(), cfg.IdentityCacheTTL)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		AppName:      "Laporan Ramadhan API",
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,HEAD,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.TeacherGate(codec))

	routes.SetupRoutes(app, routes.Controllers{
		Auth:           controllers.NewAuthController(bridge, codec),
		Identity:       controllers.NewIdentityController(students, mock),
		Sheets:         controllers.NewSheetController(sheetService),
		Health:         controllers.NewHealthController(services.NewHealthService(database.DB, database.GetRedisClient(), cfg.AppEnv)),
		LoginRateLimit: cfg.LoginRateLimit,
		EnableMock:     mock != nil,
	})
	routes.SetupStaticRoutes(app)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logrus.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"environment": cfg.AppEnv,
		"timezone":    loc.String(),
	}).Info("Server starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		logrus.WithError(err).Warn("Could not create log directory, logging to stdout")
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logrus.WithError(err).Warn("Could not open log file, logging to stdout")
		return
	}
	logrus.SetOutput(file)
}

// customErrorHandler handles errors that reach Fiber, including recovered panics
func customErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		logrus.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Path(),
			"method": c.Method(),
			"status": fe.Code,
		}).Warn("Request error")
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return utils.RespondError(c, err)
}
