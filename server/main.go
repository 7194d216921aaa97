package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxoffice/api/routes"
	"boxoffice/internal/events"
	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/sweeper"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title           Boxoffice API
// @version         1.0
// @description     Seat holds, order lifecycle and payment reconciliation for ticket sales.
// @BasePath        /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		// Check if we're in production/container mode
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release) before the logger picks its handler
	gin.SetMode(cfg.GinMode)
	logger.SetDefault(logger.New())
	appLogger = logger.GetDefault()

	// Initialize DB and migrate every table the service owns
	db, err := database.InitDB(cfg, models()...)
	if err != nil {
		appLogger.Error("Failed to initialize databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Seat hold store selected by HOLD_STORE
	holds, err := seats.NewHoldStore(cfg.Booking.HoldStore, db.GetPostgreSQL(), db.GetRedis())
	if err != nil {
		appLogger.Error("Failed to initialize hold store", slog.Any("error", err))
		os.Exit(1)
	}
	if redisHolds, ok := holds.(*seats.RedisHoldStore); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := redisHolds.PreloadScripts(ctx); err != nil {
			// Scripts are loaded on first use
			appLogger.Warn("Failed to preload Redis hold scripts", slog.Any("error", err))
		}
		cancel()
	}
	appLogger.Info("Hold store initialized", slog.String("kind", cfg.Booking.HoldStore))

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			HoldRequests:    cfg.RateLimit.HoldRequests,
			OrderRequests:   cfg.RateLimit.OrderRequests,
			AdminRequests:   cfg.RateLimit.AdminRequests,
			WebhookRequests: cfg.RateLimit.WebhookRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Domain events and audit records go through a bounded in-process queue
	publisher, err := notifications.NewPublisher(cfg.Messaging)
	if err != nil {
		appLogger.Error("Failed to initialize event publisher, falling back to log output", slog.Any("error", err))
		publisher = notifications.NewLogPublisher()
	}
	dispatcher := notifications.NewDispatcher(publisher, notifications.DispatcherConfig{
		QueueSize:      cfg.Messaging.QueueSize,
		Workers:        cfg.Messaging.Workers,
		PublishTimeout: cfg.Messaging.PublishTimeout,
	})
	dispatcher.Start()
	notificationService := notifications.NewService(dispatcher, notifications.Topics{
		Notifications: cfg.Messaging.NotificationTopic,
		Audit:         cfg.Messaging.AuditTopic,
	})
	appLogger.Info("Notification dispatcher started", slog.String("event_bus", cfg.Messaging.EventBus))

	// Setup router
	appRouter := routes.NewRouter(routes.Deps{
		Config:   cfg,
		DB:       db,
		Holds:    holds,
		Cache:    cache.NewService(db.GetRedis()),
		Notifier: notificationService,
		Clock:    clock.NewSystem(),
	})
	router := setupRouter(cfg, appRouter, rateLimiter)

	// Background expiry sweeper
	var jobs *sweeper.JobProcessor
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	if cfg.Sweeper.Enabled {
		jobs = sweeper.NewJobProcessor(appRouter.Sweeper(), clock.NewSystem(), &sweeper.JobConfig{
			Interval:     cfg.Sweeper.Interval,
			RunOnStartup: true,
		})
		jobs.Start(jobCtx)
	} else {
		appLogger.Info("Background sweeper disabled; POST /internal/sweep must be scheduled externally")
	}

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("swagger", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
			slog.Bool("sweeper", cfg.Sweeper.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	// Let a running sweep finish before draining the event queue
	if jobs != nil {
		jobs.Stop()
	}
	// Stop also closes the publisher
	if err := dispatcher.Stop(ctx); err != nil {
		appLogger.Error("Event queue not fully drained", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func models() []interface{} {
	list := []interface{}{&events.Event{}, &seats.Seat{}, &seats.SeatHold{}}
	return append(list, orders.Models()...)
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Request logging with request ids, plus panic recovery
	engine.Use(middleware.RequestLogger(), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.SessionHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter.SetupRoutes(engine)
	if cfg.IsDevelopment() {
		appLogger.Info("Routes registered", slog.Int("count", len(engine.Routes())))
	}

	return engine
}
