package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// kafkaProducer writes to topics through a single shared writer. The topic is
// set per message so one producer serves every destination.
type kafkaProducer struct {
	writer       *kafka.Writer
	defaultTopic string
	logger       *slog.Logger
}

func newKafkaProducer(ctx context.Context, cfg KafkaProducerConfig, logger *slog.Logger) (*kafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("broker: kafka brokers cannot be empty")
	}

	// The default topic must exist before the first write; other
	// destinations are created on demand by ensureKafkaTopics callers.
	if err := ensureKafkaTopics(ctx, cfg.Brokers, []string{cfg.DefaultTopic}, logger); err != nil {
		return nil, fmt.Errorf("broker: kafka topic setup: %w", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &kafkaProducer{
		writer:       writer,
		defaultTopic: cfg.DefaultTopic,
		logger:       logger,
	}, nil
}

func (p *kafkaProducer) PublishJSON(ctx context.Context, payload []byte, destination string) error {
	topic := destination
	if topic == "" {
		topic = p.defaultTopic
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte("default"),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("broker: kafka publish to %s: %w", topic, err)
	}

	p.logger.Info("published event to kafka", "event_id", eventID(payload), "topic", topic)
	return nil
}

func (p *kafkaProducer) BrokerType() string { return "kafka" }

func (p *kafkaProducer) Close() error { return p.writer.Close() }

// kafkaSubscriber runs one consumer-group reader per topic and fans the
// messages into a single delivery channel.
type kafkaSubscriber struct {
	readers []*kafka.Reader
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newKafkaSubscriber(ctx context.Context, cfg KafkaConsumerConfig, logger *slog.Logger) (*kafkaSubscriber, error) {
	if len(cfg.Topics) == 0 {
		return nil, errors.New("broker: kafka topics cannot be empty")
	}

	if err := ensureKafkaTopics(ctx, cfg.Brokers, cfg.Topics, logger); err != nil {
		return nil, fmt.Errorf("broker: kafka topic setup: %w", err)
	}

	readers := make([]*kafka.Reader, 0, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.Group,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}))
	}

	logger.Info("kafka subscriber initialized", "group", cfg.Group, "topics", cfg.Topics)
	return &kafkaSubscriber{readers: readers, logger: logger}, nil
}

func (s *kafkaSubscriber) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.readers {
		g.Go(func() error {
			for {
				// ReadMessage commits the offset within the
				// consumer group, so Ack is a no-op here.
				msg, err := r.ReadMessage(ctx)
				if err != nil {
					return err
				}
				select {
				case out <- Delivery{Payload: msg.Value, Source: msg.Topic}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("kafka subscription terminated", "error", err)
		}
		close(out)
	}()

	return out, nil
}

func (s *kafkaSubscriber) Close() error {
	s.closeOnce.Do(func() {
		for _, r := range s.readers {
			if err := r.Close(); err != nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// ensureKafkaTopics creates the topics with a single partition when they do
// not exist yet. Already-existing topics are not an error.
func ensureKafkaTopics(ctx context.Context, brokers []string, topics []string, logger *slog.Logger) error {
	if len(brokers) == 0 {
		return errors.New("broker: kafka brokers cannot be empty")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("resolve controller: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		// Topic already exists races are fine; anything else is fatal
		// for setup.
		if !errors.Is(err, kafka.TopicAlreadyExists) {
			return fmt.Errorf("create topics %v: %w", topics, err)
		}
	}

	logger.Debug("kafka topics ensured", "topics", topics)
	return nil
}
