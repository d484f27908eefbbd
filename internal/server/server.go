// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "reflexion/docs" // swagger docs
	"reflexion/internal/cache"
	"reflexion/internal/config"
	"reflexion/internal/database"
	"reflexion/internal/featureflags"
	"reflexion/internal/middleware"
	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/payments"
	"reflexion/internal/repository"
	"reflexion/internal/repository/mongostore"
	"reflexion/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	store             *repository.Store
	redis             *redis.Client
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	closeStore        func(context.Context) error
	featureFlags      *featureflags.Manager
	userService       *service.UserService
	postService       *service.PostService
	connectionService *service.ConnectionService
	billingService    *service.BillingService
}

// OpenStore connects the storage driver selected by STORE_DRIVER and returns
// its repositories with a function that releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, func(context.Context) error, error) {
	if cfg.StoreDriver == config.StoreDriverMongo {
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return mongostore.New(db), client.Disconnect, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return repository.NewGormStore(db), closeDB, nil
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	store, closeStore, err := OpenStore(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("store connection failed: %w", err)
	}

	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)

	server, err := NewServerWithDeps(cfg, store, cache.GetClient())
	if err != nil {
		return nil, err
	}
	server.closeStore = closeStore
	return server, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The cache package keeps its own client; callers that pass redisClient
// should also install it with cache.SetClient.
func NewServerWithDeps(cfg *config.Config, store *repository.Store, redisClient *redis.Client) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	photos := service.NewPhotoService(cfg)
	flags := featureflags.NewManager(cfg.FeatureFlags)
	provider := payments.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, nil)

	s := &Server{
		config:            cfg,
		store:             store,
		redis:             redisClient,
		promMiddleware:    middleware.InitMetrics("reflexion-api"),
		featureFlags:      flags,
		userService:       service.NewUserService(store.Users, photos),
		postService:       service.NewPostService(store.Posts, store.Users),
		connectionService: service.NewConnectionService(store.Connections, store.Users, flags, cfg.RevealThreshold),
		billingService: service.NewBillingService(store.Users, provider, service.BillingConfig{
			PlanID:        cfg.PaymentPlanID,
			AppURL:        cfg.AppURL,
			WebhookSecret: cfg.PaymentWebhookSecret,
		}),
	}
	s.app = s.NewApp()
	return s, nil
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Reflexion API",
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return respondError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.TracingMiddleware())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so that rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Reflexion Backend Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Signed by the provider, not by a user token.
	api.Post("/billing/webhook", s.PaymentWebhook)

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Put("/me/photo", middleware.RateLimit(s.redis, 5, 10*time.Minute, "photo"), s.UploadMyPhoto)
	protected.Get("/features", s.GetFeatureFlags)

	protected.Get("/feeds/:feed", s.GetFeed)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 1, 5*time.Minute, "create_post"), s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id route.
	posts.Post("/:id/like", s.LikePost)
	posts.Get("/:id/limits", s.GetPostLimits)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)

	conns := protected.Group("/connections")
	conns.Post("/", middleware.RateLimit(s.redis, 20, time.Hour, "connection_request"), s.RequestConnection)
	conns.Get("/", s.ListConnections)
	conns.Post("/:id/accept", s.AcceptConnection)
	conns.Post("/:id/reject", s.RejectConnection)
	conns.Get("/:id/messages", s.GetMessages)
	conns.Post("/:id/messages", middleware.RateLimit(s.redis, 30, time.Minute, "send_message"), s.SendMessage)
	conns.Post("/:id/reveal", s.RevealIdentity)
	conns.Get("/:id/photo", s.GetConnectionPhoto)
	conns.Get("/:id", s.GetConnection)

	billing := protected.Group("/billing")
	billing.Post("/checkout", middleware.RateLimit(s.redis, 5, 10*time.Minute, "checkout"), s.Checkout)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.config.JWTSecret, cache.IsTokenRevoked)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the store and Redis. Redis being absent only degrades
// the service; a configured Redis that stops answering fails readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.store.Health != nil {
		if err := s.store.Health.Ping(ctx); err != nil {
			storeStatus = "unhealthy"
		}
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case storeStatus == "unhealthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	observability.GlobalLogger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log := observability.GlobalLogger

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		log.Error("error shutting down HTTP server", slog.String("error", err.Error()))
	}

	if s.closeStore != nil {
		if err := s.closeStore(ctx); err != nil {
			log.Error("error closing store", slog.String("error", err.Error()))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	log.Info("server shutdown complete")
	return nil
}
