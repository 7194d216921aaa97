package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/sweeper"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

// One-shot expiry sweep for deployments that schedule it from cron instead of
// running the in-process job.
func main() {
	var (
		batchSize = flag.IntP("batch", "b", 0, "maximum orders to expire (defaults to SWEEP_BATCH_SIZE)")
		at        = flag.String("at", "", "sweep as of this RFC3339 instant instead of now")
		dryRun    = flag.Bool("dry-run", false, "list due orders without expiring them")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall deadline for the run")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if *batchSize > 0 {
		cfg.Sweeper.BatchSize = *batchSize
	}

	clk, err := sweepClock(*at)
	if err != nil {
		log.Fatalf("Invalid --at value: %v", err)
	}

	os.Exit(run(cfg, clk, *dryRun, *timeout))
}

// sweepClock pins every service to at when given, so orphan reclaim and order
// expiry agree on the instant.
func sweepClock(at string) (clock.Clock, error) {
	if at == "" {
		return clock.NewSystem(), nil
	}
	parsed, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return nil, err
	}
	return clock.NewManual(parsed), nil
}

// run returns the process exit code so deferred cleanup happens before exit.
func run(cfg *config.Config, clk clock.Clock, dryRun bool, timeout time.Duration) int {
	now := clk.Now()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Printf("Failed to initialize database: %v", err)
		return 1
	}
	defer db.Close()

	holds, err := seats.NewHoldStore(cfg.Booking.HoldStore, db.GetPostgreSQL(), db.GetRedis())
	if err != nil {
		log.Printf("Failed to initialize hold store: %v", err)
		return 1
	}

	publisher, err := notifications.NewPublisher(cfg.Messaging)
	if err != nil {
		log.Printf("Event publisher unavailable, logging events instead: %v", err)
		publisher = notifications.NewLogPublisher()
	}
	dispatcher := notifications.NewDispatcher(publisher, notifications.DispatcherConfig{
		QueueSize:      cfg.Messaging.QueueSize,
		Workers:        cfg.Messaging.Workers,
		PublishTimeout: cfg.Messaging.PublishTimeout,
	})
	dispatcher.Start()
	// Stop drains queued messages and closes the publisher
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			log.Printf("Event queue not fully drained: %v", err)
		}
	}()
	notifier := notifications.NewService(dispatcher, notifications.Topics{
		Notifications: cfg.Messaging.NotificationTopic,
		Audit:         cfg.Messaging.AuditTopic,
	})

	tx := database.NewUnitOfWork(db.GetPostgreSQL(), cfg.Booking.TxTimeout)
	seatRepo := seats.NewRepository(db.GetPostgreSQL())
	seatService := seats.NewService(seatRepo, holds, tx, clk, cfg)
	orderService := orders.NewService(orders.Deps{
		Repo:     orders.NewRepository(db.GetPostgreSQL()),
		Seats:    seatRepo,
		Holds:    holds,
		Events:   events.NewRepository(db.GetPostgreSQL()),
		Tx:       tx,
		Clock:    clk,
		Notifier: notifier,
		Auditor:  notifier,
		SeatMaps: seatService,
		Config:   cfg,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if dryRun {
		due, err := orderService.DueForExpiry(ctx, now, cfg.Sweeper.BatchSize)
		if err != nil {
			log.Printf("Failed to list due orders: %v", err)
			return 1
		}
		fmt.Printf("🔎 %d order(s) due for expiry as of %s\n", len(due), now.Format(time.RFC3339))
		for _, id := range due {
			fmt.Printf("  - %s\n", id)
		}
		return 0
	}

	result, err := sweeper.New(orderService, seatService, cfg.Sweeper.BatchSize).Sweep(ctx, now)
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		return 1
	}
	fmt.Printf("🧹 Sweep as of %s\n", now.Format(time.RFC3339))
	fmt.Printf("  Found: %d, expired: %d, failed: %d\n", result.Found, result.Succeeded, result.Failed)
	fmt.Printf("  Seats released: %d, orphan holds reclaimed: %d\n", result.SeatsReleased, result.HoldsReleased)
	if result.Failed > 0 {
		return 1
	}
	return 0
}
