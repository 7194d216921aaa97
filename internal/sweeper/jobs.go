package sweeper

import (
	"context"
	"sync"
	"time"

	"boxoffice/internal/shared/clock"
	"boxoffice/pkg/logger"
)

// JobProcessor runs the sweeper on a fixed interval
type JobProcessor struct {
	sweeper  *Sweeper
	clock    clock.Clock
	config   *JobConfig
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *logger.Logger
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	Interval     time.Duration
	RunOnStartup bool
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Interval:     1 * time.Minute, // Sweep expired orders every minute
		RunOnStartup: true,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(sweeper *Sweeper, clk clock.Clock, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultJobConfig().Interval
	}

	return &JobProcessor{
		sweeper: sweeper,
		clock:   clk,
		config:  config,
		done:    make(chan struct{}),
		logger:  logger.GetDefault(),
	}
}

// Start starts the sweep loop
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.wg.Add(1)
	go jp.startSweepProcessor(ctx)

	jp.logger.Info("Expiry sweeper started", "interval", jp.config.Interval.String())
}

// Stop stops the sweep loop and waits for a running pass to finish
func (jp *JobProcessor) Stop() {
	jp.stopOnce.Do(func() {
		close(jp.done)
	})
	jp.wg.Wait()
	jp.logger.Info("Expiry sweeper stopped")
}

func (jp *JobProcessor) startSweepProcessor(ctx context.Context) {
	defer jp.wg.Done()

	ticker := time.NewTicker(jp.config.Interval)
	defer ticker.Stop()

	if jp.config.RunOnStartup {
		jp.runSweep(ctx)
	}

	for {
		select {
		case <-ticker.C:
			jp.runSweep(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) runSweep(ctx context.Context) {
	if _, err := jp.sweeper.Sweep(ctx, jp.clock.Now()); err != nil {
		jp.logger.ErrorWithContext(ctx, "Sweep failed", err, nil)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	status := "running"
	select {
	case <-jp.done:
		status = "stopped"
	default:
	}
	return map[string]interface{}{
		"interval":   jp.config.Interval.String(),
		"batch_size": jp.sweeper.batchSize,
		"status":     status,
	}
}
