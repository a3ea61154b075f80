package tasks

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/infra/store"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

// Module wires the worker: task handler plus the consumer pulling from every
// task destination. Loaded only by the worker command.
var Module = fx.Module(
	"tasks",

	fx.Provide(
		fx.Annotate(func(s *store.Store) TokenStore { return s }, fx.As(new(TokenStore))),
		fx.Annotate(func(s *store.Store) UserStore { return s }, fx.As(new(UserStore))),
		NewHandler,

		func(h *Handler, producer broker.Producer, cfg *config.Config, logger *slog.Logger) (*broker.Consumer[task.Task], error) {
			ccfg, ok := broker.ConsumerConfigFrom(cfg.Messaging)
			if !ok {
				return nil, errBrokerRequired
			}
			return broker.NewConsumer[task.Task](
				context.Background(), ccfg, h, producer, cfg.Messaging.WorkerPoolSize, logger)
		},
	),

	fx.Invoke(runConsumer),
)

// runConsumer ties the consume loop to the fx lifecycle. The loop owns a
// private context cancelled on shutdown so Consume returns before Close.
func runConsumer(lc fx.Lifecycle, consumer *broker.Consumer[task.Task], shutdowner fx.Shutdowner, logger *slog.Logger) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := consumer.Connect(ctx); err != nil {
				return err
			}
			go func() {
				defer close(done)
				if err := consumer.Consume(loopCtx); err != nil && loopCtx.Err() == nil {
					logger.Error("consumer terminated", "error", err)
					_ = shutdowner.Shutdown()
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
			return consumer.Close()
		},
	})
}
