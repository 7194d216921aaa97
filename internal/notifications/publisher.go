package notifications

import (
	"context"
	"fmt"

	"boxoffice/internal/shared/config"
	"boxoffice/pkg/logger"
)

const (
	EventBusKafka    = "kafka"
	EventBusRabbitMQ = "rabbitmq"
	EventBusLog      = "log"
)

// Publisher puts a message on the event bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NewPublisher builds the publisher selected by EVENT_BUS.
func NewPublisher(cfg config.MessagingConfig) (Publisher, error) {
	switch cfg.EventBus {
	case EventBusKafka:
		return NewKafkaPublisher(DefaultKafkaProducerConfig(cfg.KafkaBrokers))
	case EventBusRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitMQURL)
	case EventBusLog, "":
		return NewLogPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.EventBus)
	}
}

// LogPublisher writes messages to the application log. Used when no broker is configured.
type LogPublisher struct {
	logger *logger.Logger
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: logger.GetDefault()}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.InfoWithContext(ctx, "Domain event", map[string]interface{}{
		"topic":   msg.Topic,
		"key":     msg.Key,
		"payload": string(msg.Payload),
	})
	return nil
}

func (p *LogPublisher) Close() error { return nil }
