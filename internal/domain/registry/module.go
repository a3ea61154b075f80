package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		New,
		fx.Annotate(
			func(r *Registry) Broadcaster { return r },
			fx.As(new(Broadcaster)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Info("closing connection registry", "connections", r.Len())
				r.Shutdown()
				return nil
			},
		})
	}),
)
