package service

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewProgressStreamer,
			fx.As(new(Streamer)),
		),
		fx.Annotate(
			NewTaskPublisher,
			fx.As(new(Publisher)),
		),
	),

	// Intercept the publisher to add cross-cutting logging
	fx.Decorate(func(orig Publisher, logger *slog.Logger) Publisher {
		return &publisherMiddleware{
			next:   orig,
			logger: logger,
		}
	}),
)
