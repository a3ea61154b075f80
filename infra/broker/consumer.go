package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Consumer states. Transitions are strictly forward:
// Created -> Connected -> Consuming -> Closed.
const (
	stateCreated int32 = iota
	stateConnected
	stateConsuming
	stateClosed
)

// Consumer pulls messages from the configured backend, decodes them into task
// events and hands them to the dispatcher. Concurrency is bounded by the
// worker pool size; a malformed message is logged and dropped without
// terminating the loop; a handler error never negative-acknowledges the
// message (the event is considered consumed, retry happens by republishing).
type Consumer[T any] struct {
	cfg      ConsumerConfig
	sub      Subscriber
	dispatch *dispatcher[T]
	logger   *slog.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer builds a consumer for the configured backend. The broker session
// is established here; construction fails fast when the broker is unreachable.
// producer may be nil when no retry republishing is wanted.
func NewConsumer[T any](ctx context.Context, cfg ConsumerConfig, handler Handler[T], producer Producer, poolSize int64, logger *slog.Logger) (*Consumer[T], error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("broker: worker pool size must be positive, got %d", poolSize)
	}

	sub, err := NewSubscriber(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Consumer[T]{
		cfg:      cfg,
		sub:      sub,
		dispatch: newDispatcher(handler, producer, poolSize, logger),
		logger:   logger,
	}, nil
}

// Connect marks the broker session established. All backends connect at
// construction, so this only advances the state machine; calling it on an
// already connected consumer is a no-op.
func (c *Consumer[T]) Connect(ctx context.Context) error {
	switch c.state.Load() {
	case stateClosed:
		return ErrClosed
	case stateCreated:
		c.state.Store(stateConnected)
	}
	return nil
}

// Consume receives messages until ctx is cancelled or the upstream stream
// terminates. It must be called after Connect.
func (c *Consumer[T]) Consume(ctx context.Context) error {
	switch c.state.Load() {
	case stateCreated:
		return ErrNotConnected
	case stateClosed:
		return ErrClosed
	}
	c.state.Store(stateConsuming)

	deliveries, err := c.sub.Subscribe(ctx)
	if err != nil {
		return err
	}

	go c.dispatch.run(ctx)

	c.logger.Info("consumer is listening", "backend", c.BrokerType(), "destinations", c.cfg.Destinations())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("consumer stream ended", "backend", c.BrokerType())
				return nil
			}

			var ev Event[T]
			if err := json.Unmarshal(d.Payload, &ev); err != nil {
				c.logger.Error("dropping malformed task event", "source", d.Source, "error", err)
				d.Ack()
				continue
			}

			// Consumed regardless of handler outcome; there is no
			// negative-acknowledge path.
			d.Ack()

			c.logger.Info("received task event",
				"event_id", ev.ID, "priority", ev.Priority.String(), "source", d.Source)
			c.dispatch.enqueue(&ev)
		}
	}
}

// BrokerType names the backend for logging.
func (c *Consumer[T]) BrokerType() string { return string(c.cfg.Backend) }

// Close releases broker resources. Safe to call multiple times.
func (c *Consumer[T]) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(stateClosed)
		c.closeErr = c.sub.Close()
	})
	return c.closeErr
}
