package bus

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
)

// Module wires the broadcast forwarder into the server process. With no
// broker configured the forwarder is skipped and clients simply never
// receive live events.
var Module = fx.Module(
	"bus",

	fx.Provide(
		func(cfg *config.Config, reg registry.Broadcaster, logger *slog.Logger) *Forwarder {
			ccfg, ok := broker.ForwarderConfigFrom(cfg.Messaging)
			if !ok {
				return nil
			}
			factory := func(ctx context.Context) (broker.Subscriber, error) {
				return broker.NewSubscriber(ctx, ccfg, logger)
			}
			return NewForwarder(factory, reg, logger)
		},
	),

	fx.Invoke(runForwarder),
)

func runForwarder(lc fx.Lifecycle, f *Forwarder, logger *slog.Logger) {
	if f == nil {
		logger.Warn("message broker not configured, broadcast forwarding disabled")
		return
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				if err := f.Run(loopCtx); err != nil && loopCtx.Err() == nil {
					logger.Error("broadcast forwarder stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
