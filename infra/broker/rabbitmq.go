package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/errgroup"
)

// rabbitMQProducer publishes persistent messages to durable queues through a
// watermill AMQP publisher. Queues are declared on first use, so publishing
// to a not-yet-existing queue is safe.
type rabbitMQProducer struct {
	publisher    *amqp.Publisher
	defaultQueue string
	logger       *slog.Logger
}

func newRabbitMQProducer(cfg RabbitMQProducerConfig, logger *slog.Logger) (*rabbitMQProducer, error) {
	publisher, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(cfg.URL), watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("broker: rabbitmq connect: %w", err)
	}

	return &rabbitMQProducer{
		publisher:    publisher,
		defaultQueue: cfg.DefaultQueue,
		logger:       logger,
	}, nil
}

func (p *rabbitMQProducer) PublishJSON(ctx context.Context, payload []byte, destination string) error {
	queue := destination
	if queue == "" {
		queue = p.defaultQueue
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("content-type", "application/json")

	if err := p.publisher.Publish(queue, msg); err != nil {
		return fmt.Errorf("broker: rabbitmq publish to %s: %w", queue, err)
	}

	p.logger.Info("published event to rabbitmq", "event_id", eventID(payload), "queue", queue)
	return nil
}

func (p *rabbitMQProducer) BrokerType() string { return "rabbitmq" }

func (p *rabbitMQProducer) Close() error { return p.publisher.Close() }

// rabbitMQSubscriber consumes one or more durable queues with manual
// acknowledgement and fans the deliveries into a single channel.
type rabbitMQSubscriber struct {
	subscriber *amqp.Subscriber
	queues     []string
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newRabbitMQSubscriber(cfg RabbitMQConsumerConfig, logger *slog.Logger) (*rabbitMQSubscriber, error) {
	if len(cfg.Queues) == 0 {
		return nil, errors.New("broker: rabbitmq queues cannot be empty")
	}

	subscriber, err := amqp.NewSubscriber(amqp.NewDurableQueueConfig(cfg.URL), watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("broker: rabbitmq connect: %w", err)
	}

	logger.Info("rabbitmq subscriber initialized", "queues", cfg.Queues)
	return &rabbitMQSubscriber{subscriber: subscriber, queues: cfg.Queues, logger: logger}, nil
}

func (s *rabbitMQSubscriber) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	g, ctx := errgroup.WithContext(ctx)
	for _, queue := range s.queues {
		msgs, err := s.subscriber.Subscribe(ctx, queue)
		if err != nil {
			return nil, fmt.Errorf("broker: rabbitmq subscribe %s: %w", queue, err)
		}

		g.Go(func() error {
			for msg := range msgs {
				d := Delivery{
					Payload: msg.Payload,
					Source:  queue,
					ack:     func() { msg.Ack() },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					msg.Nack()
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("rabbitmq subscription terminated", "error", err)
		}
		close(out)
	}()

	return out, nil
}

func (s *rabbitMQSubscriber) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.subscriber.Close()
	})
	return s.closeErr
}
