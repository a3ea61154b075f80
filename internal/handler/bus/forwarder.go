/*
Package bus bridges the broker's broadcast stream to live WebSocket clients.

The forwarder subscribes to the reserved broadcasts destination, decodes each
message and routes it through the connection registry. It is supervised: when
the subscription dies, it is rebuilt with exponential backoff instead of
silently ending progress delivery for the process.
*/
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
)

// errStreamEnded marks an upstream that closed its channel without a ctx
// cancellation, which always warrants a resubscribe.
var errStreamEnded = errors.New("bus: broadcast stream ended")

// SubscriberFactory builds a fresh broadcast subscription. The forwarder
// calls it again after a stream failure, so it must be safe to invoke
// repeatedly.
type SubscriberFactory func(ctx context.Context) (broker.Subscriber, error)

// Forwarder pumps broadcast messages from the broker into the registry.
type Forwarder struct {
	subscribe SubscriberFactory
	registry  registry.Broadcaster
	logger    *slog.Logger
}

func NewForwarder(subscribe SubscriberFactory, reg registry.Broadcaster, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		subscribe: subscribe,
		registry:  reg,
		logger:    logger,
	}
}

// Run supervises the forward loop until ctx is cancelled. Each failed
// subscription attempt or broken stream backs off exponentially; a stream
// that stays healthy resets the backoff.
func (f *Forwarder) Run(ctx context.Context) error {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 0 // supervise forever
	policy := backoff.WithContext(expo, ctx)

	op := func() error {
		if err := f.forward(ctx); err != nil {
			f.logger.Error("broadcast forwarder restarting", "error", err)
			return err
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		f.logger.Warn("broadcast forwarder backing off", "error", err, "retry_in", next)
	}

	return backoff.RetryNotify(op, policy, notify)
}

// forward runs one subscription to completion. Returning nil means ctx was
// cancelled and the supervisor should stop; any error triggers a restart.
func (f *Forwarder) forward(ctx context.Context) error {
	sub, err := f.subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	deliveries, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}

	f.logger.Info("broadcast forwarder attached")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errStreamEnded
			}
			f.handle(d)
		}
	}
}

// handle routes one delivery. Broadcast traffic is at-most-once by contract:
// every message is acknowledged no matter how routing went.
func (f *Forwarder) handle(d broker.Delivery) {
	defer d.Ack()

	var msg model.BroadcastMessage
	if err := json.Unmarshal(d.Payload, &msg); err != nil {
		f.logger.Error("dropping malformed broadcast", "source", d.Source, "error", err)
		return
	}

	key, ok := msg.RouteKey()
	if !ok {
		f.logger.Warn("broadcast carries no routable id", "event_type", msg.EventType)
		return
	}

	if delivered := f.registry.SendTo(key, msg); !delivered {
		f.logger.Debug("broadcast had no live subscriber", "key", key, "event_type", msg.EventType)
	}
}
