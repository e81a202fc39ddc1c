package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/api"
	"github.com/parleyhq/parley-backend/internal/api/middleware"
	"github.com/parleyhq/parley-backend/internal/auth"
	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/database"
	"github.com/parleyhq/parley-backend/internal/repository/postgres"
	"github.com/parleyhq/parley-backend/internal/services"
	"github.com/parleyhq/parley-backend/internal/tokenizer"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	// Connect to the metadata index
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	// Open the content store pool
	pool, err := database.NewContentPool(context.Background(), cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to open content store pool")
	}
	defer pool.Close()

	// Initialize repositories
	sessionRepo := postgres.NewSessionRepository(db.DB)
	messageRepo := postgres.NewMessageRepository(db.DB)
	summaryRepo := postgres.NewSummaryRepository(db.DB)
	apiKeyRepo := postgres.NewAPIKeyRepository(db.DB)
	contentStore := postgres.NewContentStore(pool)

	// Generation backend; without an API key the stub serves canned
	// replies, which keeps local development off the network
	var client backend.Client
	if cfg.Backend.APIKey != "" {
		client = backend.NewOpenAIClient(cfg.Backend, logger)
	} else {
		logger.Warn("no backend API key configured, serving stub replies")
		client = backend.NewStub()
	}

	estimator := tokenizer.New(cfg.Context.Tokenizer, logger)

	// Initialize services
	svc := services.NewServices(sessionRepo, messageRepo, summaryRepo, contentStore, estimator, client, cfg.Context, logger)

	if cfg.Auth.JWTSecret == "change-me-in-production" {
		logger.Warn("using default JWT secret, set PARLEY_JWT_SECRET in production")
	}
	authService := auth.NewService(apiKeyRepo, cfg.Auth, logger)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Parley Backend",
		ErrorHandler: errorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger, "/api/v1/health"))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Setup routes
	api.SetupRoutes(app, svc, authService, logger)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.WithField("addr", addr).Info("parley backend starting")
	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func corsOrigins() string {
	origins := os.Getenv("PARLEY_CORS_ORIGINS")
	if origins == "" {
		return "http://localhost:5173,http://localhost:3000"
	}
	return origins
}
