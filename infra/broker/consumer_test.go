package broker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/task-delivery-service/config"
)

// stubSubscriber replays a fixed set of deliveries.
type stubSubscriber struct {
	deliveries []Delivery
	closed     atomic.Bool
}

func (s *stubSubscriber) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for _, d := range s.deliveries {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *stubSubscriber) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestConsumer(sub Subscriber, handler Handler[string]) *Consumer[string] {
	return &Consumer[string]{
		cfg:      ConsumerConfig{Backend: config.BrokerRedis},
		sub:      sub,
		dispatch: newDispatcher[string](handler, nil, 4, discardLogger()),
		logger:   discardLogger(),
	}
}

func TestConsumerLifecycleStates(t *testing.T) {
	c := newTestConsumer(&stubSubscriber{}, HandlerFunc[string](func(context.Context, *Event[string]) error {
		return nil
	}))

	// Consuming before connecting is a programming error.
	err := c.Consume(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background())) // idempotent

	require.NoError(t, c.Close())
	require.NoError(t, c.Close()) // idempotent
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Consume(context.Background()), ErrClosed)
}

func TestConsumerDispatchesDecodedEvents(t *testing.T) {
	ev := NewEvent("hello")
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	var acked atomic.Int32
	sub := &stubSubscriber{deliveries: []Delivery{
		NewDelivery(payload, "tasks", func() { acked.Add(1) }),
	}}

	got := make(chan string, 1)
	c := newTestConsumer(sub, HandlerFunc[string](func(_ context.Context, ev *Event[string]) error {
		got <- ev.Task
		return nil
	}))

	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		_ = c.Consume(ctx)
	}()

	select {
	case task := <-got:
		assert.Equal(t, "hello", task)
	case <-ctx.Done():
		t.Fatal("handler was never invoked")
	}
	assert.Eventually(t, func() bool { return acked.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-consumeDone
}

func TestConsumerDropsMalformedMessages(t *testing.T) {
	good := NewEvent("valid")
	goodPayload, err := json.Marshal(good)
	require.NoError(t, err)

	var ackedMalformed atomic.Bool
	sub := &stubSubscriber{deliveries: []Delivery{
		NewDelivery([]byte("{not json"), "tasks", func() { ackedMalformed.Store(true) }),
		NewDelivery(goodPayload, "tasks", nil),
	}}

	var handled sync.Map
	done := make(chan struct{})
	c := newTestConsumer(sub, HandlerFunc[string](func(_ context.Context, ev *Event[string]) error {
		handled.Store(ev.Task, true)
		close(done)
		return nil
	}))

	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = c.Consume(ctx) }()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("valid event after malformed one was not processed")
	}

	// The malformed message was acked so the broker does not redeliver it.
	assert.True(t, ackedMalformed.Load())
	_, ok := handled.Load("valid")
	assert.True(t, ok)
}
