// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	_ "boxoffice/docs"
	"boxoffice/internal/events"
	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/sweeper"
	"boxoffice/pkg/cache"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the long-lived components the routes are built on
type Deps struct {
	Config   *config.Config
	DB       *database.DB
	Holds    seats.HoldStore
	Cache    cache.Service
	Notifier *notifications.Service
	Clock    clock.Clock
}

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	holds    seats.HoldStore
	cache    cache.Service
	notifier *notifications.Service
	clock    clock.Clock
	tx       database.Transactor

	// Services shared between route groups
	eventRepo    events.Repository
	seatRepo     seats.Repository
	orderRepo    orders.Repository
	seatService  seats.Service
	orderService orders.Service
	sweeper      *sweeper.Sweeper
}

// NewRouter creates a new router instance
func NewRouter(deps Deps) *Router {
	return &Router{
		config:   deps.Config,
		db:       deps.DB,
		holds:    deps.Holds,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		tx:       database.NewUnitOfWork(deps.DB.GetPostgreSQL(), deps.Config.Booking.TxTimeout),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API documentation
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Events and seat holds (seat service is needed by orders and payments)
		r.setupEventRoutes(api)
		r.setupSeatRoutes(api)

		// Order lifecycle and payment reconciliation
		r.setupOrderRoutes(api)
		r.setupPaymentRoutes(api)
	}

	// Scheduler trigger lives outside the versioned API
	r.setupSweepRoutes(engine)
}

// Sweeper returns the expiry sweeper built by SetupRoutes
func (r *Router) Sweeper() *sweeper.Sweeper {
	return r.sweeper
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "boxoffice",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "boxoffice",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		cacheStatus := "disabled"
		if r.cache != nil {
			cacheStatus = "ok"
			if err := r.cache.Ping(c.Request.Context()); err != nil {
				cacheStatus = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"hold_store":  r.config.Booking.HoldStore,
			"event_bus":   r.config.Messaging.EventBus,
			"seat_cache":  cacheStatus,
			"timestamp":   time.Now(),
		})
	})
}

// setupEventRoutes configures public event routes
func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	r.eventRepo = events.NewRepository(r.db.GetPostgreSQL())
	eventService := events.NewService(r.eventRepo, r.clock)
	eventController := events.NewController(eventService)

	events.SetupEventRoutes(rg, eventController)
}

// setupSeatRoutes configures seat hold and seat map routes
func (r *Router) setupSeatRoutes(rg *gin.RouterGroup) {
	r.seatRepo = seats.NewRepository(r.db.GetPostgreSQL())
	r.seatService = seats.NewService(r.seatRepo, r.holds, r.tx, r.clock, r.config)

	// Inject cache service dependency
	if r.cache != nil {
		r.seatService.SetCacheService(r.cache)
	}

	seats.SetupSeatRoutes(rg, seats.NewController(r.seatService))
}

// setupOrderRoutes configures buyer and admin order routes
func (r *Router) setupOrderRoutes(rg *gin.RouterGroup) {
	r.orderRepo = orders.NewRepository(r.db.GetPostgreSQL())
	r.orderService = orders.NewService(orders.Deps{
		Repo:     r.orderRepo,
		Seats:    r.seatRepo,
		Holds:    r.holds,
		Events:   r.eventRepo,
		Tx:       r.tx,
		Clock:    r.clock,
		Notifier: r.notifier,
		Auditor:  r.notifier,
		SeatMaps: r.seatService,
		Config:   r.config,
	})

	orders.SetupOrderRoutes(rg, orders.NewController(r.orderService), r.config)
}

// setupPaymentRoutes configures admin confirmation and the gateway callback
func (r *Router) setupPaymentRoutes(rg *gin.RouterGroup) {
	paymentService := payments.NewService(payments.Deps{
		Orders:   r.orderRepo,
		Seats:    r.seatRepo,
		Holds:    r.holds,
		Tx:       r.tx,
		Clock:    r.clock,
		Notifier: r.notifier,
		Auditor:  r.notifier,
		Tickets:  payments.NewTemplateTicketIssuer(r.config.Payments.TicketURLTemplate),
		SeatMaps: r.seatService,
	})

	payments.SetupPaymentRoutes(rg, payments.NewController(paymentService), r.config)
}

// setupSweepRoutes configures the scheduler-triggered expiry sweep
func (r *Router) setupSweepRoutes(engine *gin.Engine) {
	r.sweeper = sweeper.New(r.orderService, r.seatService, r.config.Sweeper.BatchSize)

	sweeper.SetupSweepRoutes(engine, sweeper.NewController(r.sweeper, r.clock), r.config.Sweeper.Secret)
}
