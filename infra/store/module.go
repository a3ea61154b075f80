package store

import (
	"context"

	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
)

var Module = fx.Module("store",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config) (*Store, error) {
			s, err := New(context.Background(), cfg.Database.URL)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					s.Close()
					return nil
				},
			})
			return s, nil
		},
	),
)
