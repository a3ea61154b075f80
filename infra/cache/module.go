package cache

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
)

var Module = fx.Module("cache",
	fx.Provide(
		fx.Annotate(
			newStatusStore,
			fx.As(new(StatusStore)),
		),
	),
)

// newStatusStore picks the backend from config and wraps it with the circuit
// breaker. Redis connectivity problems at startup fall back to the in-process
// store rather than failing the whole application.
func newStatusStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) StatusStore {
	var backend StatusStore

	if url := cfg.Cache.RedisURL; url != "" {
		store, err := NewRedisStore(context.Background(), url, cfg.Cache.StatusTTL)
		if err != nil {
			logger.Warn("status cache falling back to memory", "error", err)
		} else {
			logger.Info("status cache backed by redis")
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return store.Close()
				},
			})
			backend = store
		}
	}
	if backend == nil {
		logger.Info("status cache backed by process memory")
		backend = NewMemoryStore(cfg.Cache.StatusTTL)
	}

	return NewBreakerStore(backend, logger)
}
