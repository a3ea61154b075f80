package cmd

import (
	"go.uber.org/fx"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/infra/mail"
	"github.com/taskmesh/task-delivery-service/infra/store"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
	"github.com/taskmesh/task-delivery-service/internal/handler/bus"
	httphandler "github.com/taskmesh/task-delivery-service/internal/handler/http"
	"github.com/taskmesh/task-delivery-service/internal/service"
	"github.com/taskmesh/task-delivery-service/internal/tasks"
)

// NewServerApp assembles the edge process: HTTP/WebSocket surface, connection
// registry, broadcast forwarder and the publishing side of the broker.
func NewServerApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
		),
		broker.Module,
		cache.Module,
		registry.Module,
		service.Module,
		bus.Module,
		httphandler.Module,
	)
}

// NewWorkerApp assembles the worker process: broker consumer, task handlers
// and their persistence/mail dependencies.
func NewWorkerApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
		),
		broker.Module,
		cache.Module,
		store.Module,
		mail.Module,
		tasks.Module,
	)
}
