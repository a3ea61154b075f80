package broker

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// queued wraps an event with an arrival sequence so that equal-priority,
// equal-timestamp events still dispatch in broker order.
type queued[T any] struct {
	event *Event[T]
	seq   uint64
}

type eventHeap[T any] []queued[T]

func (h eventHeap[T]) Len() int { return len(h) }

func (h eventHeap[T]) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.event.Priority != b.event.Priority {
		return a.event.Priority > b.event.Priority
	}
	if !a.event.CreatedAt.Equal(b.event.CreatedAt) {
		return a.event.CreatedAt.Before(b.event.CreatedAt)
	}
	return a.seq < b.seq
}

func (h eventHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap[T]) Push(x any) { *h = append(*h, x.(queued[T])) }

func (h *eventHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// dispatcher pops the highest-priority pending event, bounds concurrent
// handler invocations with a counting semaphore and republishes failed events
// that still have retry budget.
type dispatcher[T any] struct {
	handler  Handler[T]
	producer Producer // may be nil; retries are skipped then
	sem      *semaphore.Weighted
	logger   *slog.Logger

	mu      sync.Mutex
	pending eventHeap[T]
	seq     uint64

	// wake holds at most one signal; enqueue never blocks on it.
	wake chan struct{}

	// inflight tracks spawned handler invocations so Close can observe
	// completion in tests. The run loop itself never waits on it.
	inflight sync.WaitGroup
}

func newDispatcher[T any](handler Handler[T], producer Producer, poolSize int64, logger *slog.Logger) *dispatcher[T] {
	return &dispatcher[T]{
		handler:  handler,
		producer: producer,
		sem:      semaphore.NewWeighted(poolSize),
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

func (d *dispatcher[T]) enqueue(ev *Event[T]) {
	d.mu.Lock()
	d.seq++
	heap.Push(&d.pending, queued[T]{event: ev, seq: d.seq})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher[T]) pop() *Event[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil
	}
	return heap.Pop(&d.pending).(queued[T]).event
}

// run loops until ctx is cancelled. In-flight handler invocations are not
// drained on cancellation; shutdown is a hard stop.
func (d *dispatcher[T]) run(ctx context.Context) {
	for {
		ev := d.pop()
		if ev == nil {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}

		d.inflight.Add(1)
		go func(ev *Event[T]) {
			defer d.inflight.Done()
			defer d.sem.Release(1)
			d.process(ctx, ev)
		}(ev)
	}
}

func (d *dispatcher[T]) process(ctx context.Context, ev *Event[T]) {
	d.logger.Info("processing task", "event_id", ev.ID, "priority", ev.Priority.String())

	if err := d.handler.HandleTask(ctx, ev); err != nil {
		d.logger.Error("task failed", "event_id", ev.ID, "error", err)
		d.scheduleRetry(ctx, ev)
		return
	}

	d.logger.Info("task completed", "event_id", ev.ID)
}

// scheduleRetry republishes a failed event to the default destination after an
// exponential backoff of 2^retry_count seconds, consuming one retry attempt.
func (d *dispatcher[T]) scheduleRetry(ctx context.Context, ev *Event[T]) {
	if !ev.ShouldRetry() {
		d.logger.Error("task exceeded max retries", "event_id", ev.ID, "max_retries", ev.MaxRetries)
		return
	}
	if d.producer == nil {
		d.logger.Warn("no producer configured, task will not be retried", "event_id", ev.ID)
		return
	}

	retry := *ev
	retry.IncrementRetry()
	delay := time.Duration(1<<retry.RetryCount) * time.Second

	d.logger.Warn("task scheduled for retry",
		"event_id", retry.ID,
		"attempt", retry.RetryCount,
		"max_retries", retry.MaxRetries,
		"delay", delay)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err := PublishEvent(ctx, d.producer, &retry, ""); err != nil {
			d.logger.Error("failed to republish task for retry", "event_id", retry.ID, "error", err)
		}
	}()
}
