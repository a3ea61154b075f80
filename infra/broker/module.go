package broker

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
)

var Module = fx.Module("broker",
	fx.Provide(
		// Producer is nil when MESSAGE_BROKER is unset; publishing callers
		// treat that as best effort.
		func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Producer, error) {
			pcfg, ok := ProducerConfigFrom(cfg.Messaging)
			if !ok {
				logger.Warn("message broker not configured, publishing disabled")
				return nil, nil
			}
			p, err := NewProducer(context.Background(), pcfg, logger)
			if err != nil {
				return nil, err
			}
			logger.Info("message broker connected", "backend", p.BrokerType())
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return p.Close()
				},
			})
			return p, nil
		},
	),
)
