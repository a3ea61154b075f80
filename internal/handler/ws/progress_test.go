package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
	"github.com/taskmesh/task-delivery-service/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type wsFixture struct {
	server   *httptest.Server
	registry *registry.Registry
	cache    cache.StatusStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	logger := discardLogger()
	reg := registry.New(logger)
	statusCache := cache.NewMemoryStore(0)
	streamer := service.NewProgressStreamer(reg, statusCache, logger)
	handler := NewProgressHandler(logger, streamer)

	r := chi.NewRouter()
	r.Get("/ws/tasks/{task_id}", handler.TaskProgress)
	r.Get("/ws/users/{user_id}", handler.UserEvents)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsFixture{server: srv, registry: reg, cache: statusCache}
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readBroadcast(t *testing.T, conn *websocket.Conn) model.BroadcastMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg model.BroadcastMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitRegistered(t *testing.T, reg *registry.Registry) {
	t.Helper()
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestTaskProgressStreamsLiveEvents(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/tasks/task-1")
	waitRegistered(t, f.registry)

	snapshot := model.NewAvatarUploadProgress("task-1", 7, 25, "processing")
	live, err := model.NewBroadcastMessage(model.EventAvatarUploadProgress, snapshot)
	require.NoError(t, err)
	require.True(t, f.registry.SendTo("task-1", live))

	msg := readBroadcast(t, conn)
	assert.Equal(t, model.EventAvatarUploadProgress, msg.EventType)

	var p model.AvatarUploadProgress
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, 25, p.Progress)
}

func TestTaskProgressReplaysCachedSnapshotFirst(t *testing.T) {
	f := newWSFixture(t)

	snapshot := model.NewAvatarUploadProgress("task-1", 7, 60, "processing").WithMessage("Optimizing...")
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, f.cache.CacheStatus(context.Background(), "task-1", raw))

	conn := f.dial(t, "/ws/tasks/task-1")
	waitRegistered(t, f.registry)

	done := model.NewAvatarUploadProgress("task-1", 7, 100, "completed")
	live, err := model.NewBroadcastMessage(model.EventAvatarUploadComplete, done)
	require.NoError(t, err)
	require.True(t, f.registry.SendTo("task-1", live))

	first := readBroadcast(t, conn)
	assert.Equal(t, model.EventAvatarUploadProgress, first.EventType)

	var replayed model.AvatarUploadProgress
	require.NoError(t, json.Unmarshal(first.Data, &replayed))
	assert.Equal(t, 60, replayed.Progress)

	second := readBroadcast(t, conn)
	assert.Equal(t, model.EventAvatarUploadComplete, second.EventType)
}

func TestUserEventsLegacyPath(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/users/42")
	waitRegistered(t, f.registry)

	live, err := model.NewBroadcastMessage("user_event", map[string]any{"user_id": 42})
	require.NoError(t, err)
	require.True(t, f.registry.SendTo("user-42", live))

	msg := readBroadcast(t, conn)
	assert.Equal(t, "user_event", msg.EventType)
}

func TestUserEventsRejectsMalformedID(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/users/not-a-number"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/tasks/task-1")
	waitRegistered(t, f.registry)

	conn.Close()
	require.Eventually(t, func() bool { return f.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
