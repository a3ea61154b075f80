package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

// publisherMiddleware decorates a Publisher with timing and outcome logging
// so every enqueue attempt is auditable without touching business logic.
type publisherMiddleware struct {
	next   Publisher
	logger *slog.Logger
}

func (m *publisherMiddleware) Publish(ctx context.Context, t task.Task, destination string) error {
	return m.PublishWithPriority(ctx, t, broker.PriorityNormal, destination)
}

func (m *publisherMiddleware) PublishWithPriority(ctx context.Context, t task.Task, priority broker.Priority, destination string) error {
	start := time.Now()

	err := m.next.PublishWithPriority(ctx, t, priority, destination)

	if err != nil {
		m.logger.Error("task publish failed",
			"type", t.Type,
			"destination", destination,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		m.logger.Debug("task published",
			"type", t.Type,
			"priority", priority.String(),
			"destination", destination,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return err
}
