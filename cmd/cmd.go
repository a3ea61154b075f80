package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/taskmesh/task-delivery-service/config"
	"go.uber.org/fx"
)

const ServiceName = "task-delivery-service"

var version = "0.0.0"

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Asynchronous task distribution with realtime progress broadcasting",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			workerCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP/WebSocket edge with the broadcast forwarder",
		Action: func(c *cli.Context) error {
			return runApp(c.Context, NewServerApp)
		},
	}
}

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Run the task consumer worker",
		Action: func(c *cli.Context) error {
			return runApp(c.Context, NewWorkerApp)
		},
	}
}

func runApp(ctx context.Context, build func(*config.Config) *fx.App) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app := build(cfg)

	if err := app.Start(ctx); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-app.Done():
	}

	slog.Info("Shutting down...")
	return app.Stop(context.Background())
}
