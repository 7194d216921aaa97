package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, 10, cfg.Booking.MaxSeatsPerRequest)
	assert.Equal(t, 15*time.Minute, cfg.Booking.OrderTTL)
	assert.Equal(t, 24*time.Hour, cfg.Booking.ReviewTTL)
	assert.Equal(t, "RESERVED", cfg.Booking.OrderSeatStatus)
	assert.Equal(t, 60*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HOLD_STORE", "Redis")
	t.Setenv("MAX_SEATS_PER_REQUEST", "4")
	t.Setenv("ORDER_SEAT_STATUS", "locked")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "redis", cfg.Booking.HoldStore)
	assert.Equal(t, 4, cfg.Booking.MaxSeatsPerRequest)
	assert.Equal(t, "LOCKED", cfg.Booking.OrderSeatStatus)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.KafkaBrokers)
	assert.Equal(t, 60*time.Second, cfg.Sweeper.Interval, "invalid values fall back to the default")
}
