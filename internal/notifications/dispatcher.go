package notifications

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"boxoffice/pkg/logger"
)

// Dispatcher hands messages to a Publisher from a bounded queue drained by a
// fixed set of workers. Enqueue never blocks; when the queue is full the message
// is dropped and counted.
type Dispatcher struct {
	publisher Publisher
	queue     chan Message
	workers   int
	timeout   time.Duration
	logger    *logger.Logger

	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	closed   atomic.Bool
	mu       sync.RWMutex

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

func NewDispatcher(publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Dispatcher{
		publisher: publisher,
		queue:     make(chan Message, cfg.QueueSize),
		workers:   cfg.Workers,
		timeout:   cfg.PublishTimeout,
		logger:    logger.GetDefault(),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
		d.logger.Info("Event dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
	})
}

// Enqueue reports whether msg was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Event queue full, dropping message", "topic", msg.Topic, "key", msg.Key)
		return false
	}
}

// Stop stops accepting messages, drains the queue and closes the publisher.
// The drain is bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		close(d.queue)
		d.mu.Unlock()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		if closeErr := d.publisher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		d.logger.Info("Event dispatcher stopped",
			"published", d.published.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
	})
	return err
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.publish(msg)
	}
}

func (d *Dispatcher) publish(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, msg); err != nil {
		d.failed.Add(1)
		d.logger.ErrorWithContext(ctx, "Failed to publish message", err, map[string]interface{}{
			"topic": msg.Topic,
			"key":   msg.Key,
		})
		return
	}
	d.published.Add(1)
}

// Stats returns published, failed and dropped counts.
func (d *Dispatcher) Stats() map[string]int64 {
	return map[string]int64{
		"published": d.published.Load(),
		"failed":    d.failed.Load(),
		"dropped":   d.dropped.Load(),
		"queued":    int64(len(d.queue)),
	}
}
