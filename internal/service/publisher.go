package service

import (
	"context"
	"log/slog"

	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

// Publisher enqueues application tasks for asynchronous processing.
type Publisher interface {
	// Publish enqueues the task with normal priority. An empty destination
	// targets the backend default.
	Publish(ctx context.Context, t task.Task, destination string) error
	// PublishWithPriority enqueues the task with an explicit priority.
	PublishWithPriority(ctx context.Context, t task.Task, priority broker.Priority, destination string) error
}

// TaskPublisher publishes through the configured broker. A nil producer means
// messaging is disabled by deployment choice: tasks are logged and dropped,
// and the caller's request still succeeds.
type TaskPublisher struct {
	producer broker.Producer
	logger   *slog.Logger
}

func NewTaskPublisher(producer broker.Producer, logger *slog.Logger) *TaskPublisher {
	return &TaskPublisher{
		producer: producer,
		logger:   logger,
	}
}

func (p *TaskPublisher) Publish(ctx context.Context, t task.Task, destination string) error {
	return p.PublishWithPriority(ctx, t, broker.PriorityNormal, destination)
}

func (p *TaskPublisher) PublishWithPriority(ctx context.Context, t task.Task, priority broker.Priority, destination string) error {
	if p.producer == nil {
		p.logger.Warn("message broker disabled, dropping task", "type", t.Type)
		return nil
	}
	return task.PublishWithPriority(ctx, p.producer, t, priority, destination)
}
