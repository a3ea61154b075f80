package task

import (
	"context"

	"github.com/taskmesh/task-delivery-service/infra/broker"
)

// Event is the broker envelope carrying an application task.
type Event = broker.Event[Task]

// Handler processes decoded task events.
type Handler = broker.Handler[Task]

// NewEvent wraps a task with normal priority.
func NewEvent(t Task) *Event {
	return broker.NewEvent(t)
}

// NewEventWithPriority wraps a task with the given priority.
func NewEventWithPriority(t Task, priority broker.Priority) *Event {
	return broker.NewEventWithPriority(t, priority)
}

// Publish wraps the task in an envelope with normal priority and publishes it.
// An empty destination targets the backend default.
func Publish(ctx context.Context, p broker.Producer, t Task, destination string) error {
	return PublishWithPriority(ctx, p, t, broker.PriorityNormal, destination)
}

// PublishWithPriority wraps the task in an envelope with the given priority
// and publishes it.
func PublishWithPriority(ctx context.Context, p broker.Producer, t Task, priority broker.Priority, destination string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return broker.PublishEvent(ctx, p, NewEventWithPriority(t, priority), destination)
}
