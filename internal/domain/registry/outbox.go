package registry

import (
	"context"
	"sync"

	"github.com/taskmesh/task-delivery-service/internal/domain/model"
)

// Outbox is the per-connection delivery queue. Pushes never block regardless
// of how slowly the connection drains, so a stalled WebSocket cannot back up
// the forwarder or the worker pipeline; the queue grows instead.
//
// [BACKPRESSURE] none by design. The upper bound on growth is the lifetime of
// a single task's progress stream, which is small and finite.
type Outbox struct {
	mu     sync.Mutex
	buf    []model.BroadcastMessage
	closed bool

	// signal carries at most one token; push sets it, Pull consumes it when
	// the buffer was drained.
	signal chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{signal: make(chan struct{}, 1)}
}

// Push appends the message and wakes a pending Pull. It reports false once
// the outbox is closed.
func (o *Outbox) Push(msg model.BroadcastMessage) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.buf = append(o.buf, msg)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return true
}

// Pull blocks until a message is available, the outbox is closed (second
// return false) or the context is cancelled. Buffered messages are still
// drained after Close.
func (o *Outbox) Pull(ctx context.Context) (model.BroadcastMessage, bool) {
	for {
		o.mu.Lock()
		if len(o.buf) > 0 {
			msg := o.buf[0]
			o.buf = o.buf[1:]
			o.mu.Unlock()
			return msg, true
		}
		closed := o.closed
		o.mu.Unlock()

		if closed {
			return model.BroadcastMessage{}, false
		}

		select {
		case <-o.signal:
		case <-ctx.Done():
			return model.BroadcastMessage{}, false
		}
	}
}

// Close marks the outbox as terminated and wakes any pending Pull.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

// Len reports the number of buffered messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf)
}
