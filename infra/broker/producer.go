package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/taskmesh/task-delivery-service/config"
)

// Producer publishes serialized JSON payloads to a named destination.
type Producer interface {
	// PublishJSON performs one network write to the configured broker.
	// An empty destination targets the backend default (topic, channel or
	// queue). Connection and serialization errors surface to the caller.
	PublishJSON(ctx context.Context, payload []byte, destination string) error
	// BrokerType names the backend for logging.
	BrokerType() string
	// Close releases backend resources.
	Close() error
}

// NewProducer builds the producer for the configured backend. Construction may
// perform setup side effects (verifying or creating topics) and fails fast
// when the broker is unreachable.
func NewProducer(ctx context.Context, cfg ProducerConfig, logger *slog.Logger) (Producer, error) {
	switch cfg.Backend {
	case config.BrokerKafka:
		return newKafkaProducer(ctx, cfg.Kafka, logger)
	case config.BrokerRedis:
		return newRedisProducer(ctx, cfg.Redis, logger)
	case config.BrokerRabbitMQ:
		return newRabbitMQProducer(cfg.RabbitMQ, logger)
	default:
		return nil, unknownBackend(cfg.Backend)
	}
}

// NewSubscriber builds the raw subscription stream for the configured backend.
func NewSubscriber(ctx context.Context, cfg ConsumerConfig, logger *slog.Logger) (Subscriber, error) {
	switch cfg.Backend {
	case config.BrokerKafka:
		return newKafkaSubscriber(ctx, cfg.Kafka, logger)
	case config.BrokerRedis:
		return newRedisSubscriber(ctx, cfg.Redis, logger)
	case config.BrokerRabbitMQ:
		return newRabbitMQSubscriber(cfg.RabbitMQ, logger)
	default:
		return nil, unknownBackend(cfg.Backend)
	}
}

// eventID extracts the envelope id from a serialized payload for logging.
// Payloads without an id field are logged under an empty id rather than
// failing the publish.
func eventID(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &probe)
	return probe.ID
}
