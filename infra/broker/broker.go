// Package broker implements the producer/consumer abstraction over the three
// supported message transports: Kafka, Redis pub/sub and RabbitMQ. Backends are
// selected by a factory keyed on configuration; the worker pipeline and the
// broadcast forwarder share the same Subscriber seam so decoding and routing
// logic lives in exactly one place per concern.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskmesh/task-delivery-service/config"
)

var (
	// ErrNotConnected is returned when Consume is called before Connect.
	ErrNotConnected = errors.New("broker: consumer is not connected")
	// ErrClosed is returned when operating on a closed consumer.
	ErrClosed = errors.New("broker: consumer is closed")
)

// Delivery is a single raw message pulled from a backend subscription.
type Delivery struct {
	// Payload is the raw message body.
	Payload []byte
	// Source is the destination (topic, channel or queue) the message
	// arrived on.
	Source string

	ack func()
}

// NewDelivery builds a delivery with an optional acknowledgement callback.
// Backend adapters and test doubles use it; ack may be nil.
func NewDelivery(payload []byte, source string, ack func()) Delivery {
	return Delivery{Payload: payload, Source: source, ack: ack}
}

// Ack acknowledges the delivery with the backend. It is a no-op for backends
// without manual acknowledgement (Kafka consumer groups with auto-commit,
// Redis pub/sub) and safe to call on the zero value.
func (d Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Subscriber yields the raw byte stream of one or more destinations.
// Implementations connect eagerly at construction and fail fast when the
// broker is unreachable.
type Subscriber interface {
	// Subscribe starts the stream. The returned channel is closed when the
	// upstream stream terminates or ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Delivery, error)
	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// ProducerConfig selects and parameterises a producer backend.
type ProducerConfig struct {
	Backend config.BrokerType

	Kafka    KafkaProducerConfig
	Redis    RedisProducerConfig
	RabbitMQ RabbitMQProducerConfig
}

type KafkaProducerConfig struct {
	Brokers      []string
	DefaultTopic string
}

type RedisProducerConfig struct {
	URL            string
	DefaultChannel string
}

type RabbitMQProducerConfig struct {
	URL          string
	DefaultQueue string
}

// ConsumerConfig selects and parameterises a subscription backend. The same
// shape serves the worker consumer (many destinations) and the broadcast
// forwarder (a single destination).
type ConsumerConfig struct {
	Backend config.BrokerType

	Kafka    KafkaConsumerConfig
	Redis    RedisConsumerConfig
	RabbitMQ RabbitMQConsumerConfig
}

type KafkaConsumerConfig struct {
	Brokers []string
	Group   string
	Topics  []string
}

type RedisConsumerConfig struct {
	URL      string
	Channels []string
}

type RabbitMQConsumerConfig struct {
	URL    string
	Queues []string
}

// Destinations lists the configured destinations of the active backend.
func (c ConsumerConfig) Destinations() []string {
	switch c.Backend {
	case config.BrokerKafka:
		return c.Kafka.Topics
	case config.BrokerRedis:
		return c.Redis.Channels
	case config.BrokerRabbitMQ:
		return c.RabbitMQ.Queues
	}
	return nil
}

func unknownBackend(b config.BrokerType) error {
	return fmt.Errorf("broker: unknown backend %q", b)
}
