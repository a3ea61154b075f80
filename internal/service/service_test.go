package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingProducer captures publishes for the publisher tests.
type recordingProducer struct {
	payloads [][]byte
	dests    []string
}

func (p *recordingProducer) PublishJSON(_ context.Context, payload []byte, destination string) error {
	p.payloads = append(p.payloads, payload)
	p.dests = append(p.dests, destination)
	return nil
}

func (p *recordingProducer) BrokerType() string { return "record" }
func (p *recordingProducer) Close() error       { return nil }

func TestTaskPublisherNilProducerSkips(t *testing.T) {
	p := NewTaskPublisher(nil, discardLogger())

	err := p.Publish(context.Background(), task.NewCleanupExpiredToken(), "")
	assert.NoError(t, err)
}

func TestTaskPublisherPublishes(t *testing.T) {
	producer := &recordingProducer{}
	p := NewTaskPublisher(producer, discardLogger())

	err := p.Publish(context.Background(), task.NewProcessUserRegistration(5), "tasks")
	require.NoError(t, err)
	require.Len(t, producer.payloads, 1)
	assert.Equal(t, "tasks", producer.dests[0])
}

func TestPublisherMiddlewareForwards(t *testing.T) {
	producer := &recordingProducer{}
	var p Publisher = &publisherMiddleware{
		next:   NewTaskPublisher(producer, discardLogger()),
		logger: discardLogger(),
	}

	require.NoError(t, p.Publish(context.Background(), task.NewCleanupExpiredToken(), ""))
	assert.Len(t, producer.payloads, 1)
}

func newStreamer(t *testing.T) (*ProgressStreamer, *registry.Registry, cache.StatusStore) {
	t.Helper()
	reg := registry.New(discardLogger())
	store := cache.NewMemoryStore(0)
	return NewProgressStreamer(reg, store, discardLogger()), reg, store
}

func TestSubscribeWithoutSnapshot(t *testing.T) {
	s, reg, _ := newStreamer(t)

	out, err := s.Subscribe(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 1, reg.Len())

	s.Unsubscribe("task-1")
	assert.Equal(t, 0, reg.Len())
}

func TestSubscribeReplaysSnapshotBeforeLive(t *testing.T) {
	s, reg, store := newStreamer(t)
	ctx := context.Background()

	snapshot := model.NewAvatarUploadProgress("task-1", 7, 60, "processing").WithMessage("Optimizing...")
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, store.CacheStatus(ctx, "task-1", raw))

	out, err := s.Subscribe(ctx, "task-1")
	require.NoError(t, err)

	// A live event lands right after registration.
	live, err := model.NewBroadcastMessage(model.EventAvatarUploadComplete, snapshot)
	require.NoError(t, err)
	require.True(t, reg.SendTo("task-1", live))

	first, ok := out.Pull(ctx)
	require.True(t, ok)
	assert.Equal(t, model.EventAvatarUploadProgress, first.EventType)

	var replayed model.AvatarUploadProgress
	require.NoError(t, json.Unmarshal(first.Data, &replayed))
	assert.Equal(t, 60, replayed.Progress)

	second, ok := out.Pull(ctx)
	require.True(t, ok)
	assert.Equal(t, model.EventAvatarUploadComplete, second.EventType)
}
