package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boxoffice/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the Kafka publisher
type KafkaProducerConfig struct {
	Brokers          []string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

func DefaultKafkaProducerConfig(brokers []string) *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          brokers,
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// SaramaConfig builds the producer configuration. Idempotent writes require a
// single in-flight request per connection.
func (c *KafkaProducerConfig) SaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = c.Timeout
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes
	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps one order's messages in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaPublisher publishes messages through a sarama SyncProducer. Close is
// idempotent; sarama panics when a producer is closed twice.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewKafkaPublisher(config *KafkaProducerConfig) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(config.Brokers, config.SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger.GetDefault()}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	message := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(msg.Payload),
		Headers:   recordHeaders(msg.Headers),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	p.logger.DebugWithContext(ctx, "Message published to Kafka", map[string]interface{}{
		"topic":     msg.Topic,
		"partition": partition,
		"offset":    offset,
		"key":       msg.Key,
	})
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		if err := p.producer.Close(); err != nil {
			p.closeErr = fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	})
	return p.closeErr
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	out := make([]sarama.RecordHeader, 0, len(headers)+1)
	out = append(out, sarama.RecordHeader{Key: []byte("producer"), Value: []byte("boxoffice")})
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return out
}
