package main

import (
	"inbox-service/internal/billing"
	"inbox-service/internal/handler"
	"inbox-service/internal/mailer"
	"inbox-service/internal/middleware"
	"inbox-service/internal/model"
	"inbox-service/pkg/config"
	"inbox-service/pkg/database"
	"inbox-service/pkg/jwtutil"
	"inbox-service/pkg/logger"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"inbox-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting inbox service...", cfg.LogConfig()...)

	// Initialize database
	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Run migrations
	if err := database.MigrateModels(
		&model.User{},
		&model.UserRole{},
		&model.Client{},
		&model.Membership{},
		&model.Submission{},
	); err != nil {
		log.Fatal("Failed to migrate database models", zap.Error(err))
	}

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Initialize payment provider
	billing.Initialize(&cfg.Stripe)
	if !billing.Configured() {
		log.Warn("Billing not fully configured, checkout disabled")
	}

	// Initialize transactional email sender
	handler.InitMailer(mailer.New(&cfg.Mail))

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.POST("/submit/:client_id", handler.CreateSubmission)
	e.POST("/webhooks/stripe", handler.StripeWebhook)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/me", handler.Me)

	// Client management - no client context required
	api.POST("/clients", handler.CreateClient)
	api.GET("/clients", handler.ListClients)

	// Client-scoped routes
	clients := api.Group("/clients/:id")
	clients.GET("", handler.GetClient)
	clients.GET("/subscription", handler.GetSubscription)
	clients.POST("/billing/checkout", handler.CreateCheckoutSession)
	clients.POST("/billing/portal", handler.CreatePortalSession)
	clients.GET("/members", handler.ListMembers)
	clients.POST("/members", handler.AddMember)
	clients.DELETE("/members/:uid", handler.RemoveMember)

	// Inbox routes - gated on an active subscription
	inbox := clients.Group("")
	inbox.Use(middleware.RequireActiveSubscription)
	inbox.GET("/submissions", handler.ListSubmissions)
	inbox.GET("/submissions/:sid", handler.GetSubmission)
	inbox.POST("/submissions/:sid/reply", handler.ReplySubmission)
	inbox.POST("/submissions/:sid/respond", handler.MarkResponded)
	inbox.DELETE("/submissions/:sid", handler.DeleteSubmission)
	inbox.GET("/dashboard", handler.GetDashboard)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
