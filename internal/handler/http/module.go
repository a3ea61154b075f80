package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/internal/handler/ws"
)

var Module = fx.Module(
	"http-handler",

	fx.Provide(
		NewTaskHandler,
		ws.NewProgressHandler,
		NewRouter,
	),

	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, router chi.Router, cfg *config.Config, logger *slog.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", "error", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
