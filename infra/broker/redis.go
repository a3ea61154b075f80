package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisProducer publishes over pub/sub channels. Redis pub/sub is
// fire-and-forget: a message published while nobody is subscribed is lost, so
// a zero-receiver publish succeeds but is logged as a warning.
type redisProducer struct {
	client         *redis.Client
	defaultChannel string
	logger         *slog.Logger
}

func newRedisProducer(ctx context.Context, cfg RedisProducerConfig, logger *slog.Logger) (*redisProducer, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: redis connect: %w", err)
	}

	return &redisProducer{
		client:         client,
		defaultChannel: cfg.DefaultChannel,
		logger:         logger,
	}, nil
}

func (p *redisProducer) PublishJSON(ctx context.Context, payload []byte, destination string) error {
	channel := destination
	if channel == "" {
		channel = p.defaultChannel
	}

	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("broker: redis publish to %s: %w", channel, err)
	}

	if receivers == 0 {
		p.logger.Warn("published event to redis channel with no subscribers, message is lost",
			"event_id", eventID(payload), "channel", channel)
	} else {
		p.logger.Info("published event to redis",
			"event_id", eventID(payload), "channel", channel, "receivers", receivers)
	}
	return nil
}

func (p *redisProducer) BrokerType() string { return "redis" }

func (p *redisProducer) Close() error { return p.client.Close() }

// redisSubscriber consumes one pub/sub subscription covering all configured
// channels.
type redisSubscriber struct {
	client   *redis.Client
	channels []string
	logger   *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

func newRedisSubscriber(ctx context.Context, cfg RedisConsumerConfig, logger *slog.Logger) (*redisSubscriber, error) {
	if len(cfg.Channels) == 0 {
		return nil, errors.New("broker: redis channels cannot be empty")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: redis connect: %w", err)
	}

	logger.Info("redis subscriber initialized", "channels", cfg.Channels)
	return &redisSubscriber{client: client, channels: cfg.Channels, logger: logger}, nil
}

func (s *redisSubscriber) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	pubsub := s.client.Subscribe(ctx, s.channels...)
	s.pubsub = pubsub
	s.mu.Unlock()

	// Wait for the subscription confirmation so a dead broker fails here
	// instead of silently yielding an empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("broker: redis subscribe: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-pubsub.Channel():
				if !ok {
					s.logger.Warn("redis pub/sub stream ended")
					return
				}
				select {
				case out <- Delivery{Payload: []byte(msg.Payload), Source: msg.Channel}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *redisSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.client.Close()
}
