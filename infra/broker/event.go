package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority orders task execution. Higher values dispatch first.
type Priority int8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

const defaultMaxRetries = 3

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	default:
		return "Normal"
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	switch s {
	case "Low":
		*p = PriorityLow
	case "Normal":
		*p = PriorityNormal
	case "High":
		*p = PriorityHigh
	default:
		return fmt.Errorf("priority: unknown value %q", s)
	}
	return nil
}

// Event is the serializable envelope wrapping an application-defined task
// payload. The ID is assigned once at construction and never changes.
type Event[T any] struct {
	ID         string    `json:"id"`
	Task       T         `json:"task"`
	CreatedAt  time.Time `json:"created_at"`
	RetryCount uint32    `json:"retry_count"`
	MaxRetries uint32    `json:"max_retries"`
	Priority   Priority  `json:"priority"`
}

// NewEvent wraps a task with normal priority.
func NewEvent[T any](task T) *Event[T] {
	return NewEventWithPriority(task, PriorityNormal)
}

// NewEventWithPriority wraps a task with the given priority.
func NewEventWithPriority[T any](task T, priority Priority) *Event[T] {
	return &Event[T]{
		ID:         uuid.NewString(),
		Task:       task,
		CreatedAt:  time.Now().UTC(),
		RetryCount: 0,
		MaxRetries: defaultMaxRetries,
		Priority:   priority,
	}
}

// ShouldRetry reports whether the retry budget allows another attempt.
func (e *Event[T]) ShouldRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// IncrementRetry consumes one retry attempt.
func (e *Event[T]) IncrementRetry() {
	e.RetryCount++
}

// UnmarshalJSON applies the envelope defaults (retry_count=0, max_retries=3,
// priority=Normal) for fields absent on the wire.
func (e *Event[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string          `json:"id"`
		Task       json.RawMessage `json:"task"`
		CreatedAt  time.Time       `json:"created_at"`
		RetryCount *uint32         `json:"retry_count"`
		MaxRetries *uint32         `json:"max_retries"`
		Priority   *Priority       `json:"priority"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = raw.ID
	e.CreatedAt = raw.CreatedAt
	if len(raw.Task) > 0 {
		if err := json.Unmarshal(raw.Task, &e.Task); err != nil {
			return fmt.Errorf("task payload: %w", err)
		}
	}
	e.RetryCount = 0
	if raw.RetryCount != nil {
		e.RetryCount = *raw.RetryCount
	}
	e.MaxRetries = defaultMaxRetries
	if raw.MaxRetries != nil {
		e.MaxRetries = *raw.MaxRetries
	}
	e.Priority = PriorityNormal
	if raw.Priority != nil {
		e.Priority = *raw.Priority
	}
	return nil
}

// PublishEvent serializes the envelope and hands it to the producer.
// An empty destination targets the backend default.
func PublishEvent[T any](ctx context.Context, p Producer, ev *Event[T], destination string) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("broker: marshal event %s: %w", ev.ID, err)
	}
	return p.PublishJSON(ctx, payload, destination)
}

// Handler processes one decoded task event. Implementations must be safe for
// concurrent invocation: completion order is not guaranteed once the worker
// pool holds more than one permit.
type Handler[T any] interface {
	HandleTask(ctx context.Context, event *Event[T]) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, event *Event[T]) error

func (f HandlerFunc[T]) HandleTask(ctx context.Context, event *Event[T]) error {
	return f(ctx, event)
}
