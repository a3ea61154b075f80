package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
	"github.com/taskmesh/task-delivery-service/internal/handler/ws"
	"github.com/taskmesh/task-delivery-service/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spyPublisher records published tasks.
type spyPublisher struct {
	tasks      []task.Task
	priorities []broker.Priority
}

func (s *spyPublisher) Publish(ctx context.Context, t task.Task, destination string) error {
	return s.PublishWithPriority(ctx, t, broker.PriorityNormal, destination)
}

func (s *spyPublisher) PublishWithPriority(_ context.Context, t task.Task, p broker.Priority, _ string) error {
	s.tasks = append(s.tasks, t)
	s.priorities = append(s.priorities, p)
	return nil
}

func newTestRouter(pub service.Publisher) http.Handler {
	logger := discardLogger()
	streamer := service.NewProgressStreamer(registry.New(logger), cache.NewMemoryStore(0), logger)
	return NewRouter(NewTaskHandler(pub, logger), ws.NewProgressHandler(logger, streamer), logger)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&spyPublisher{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartAvatarUpload(t *testing.T) {
	pub := &spyPublisher{}
	router := newTestRouter(pub)

	body := strings.NewReader(`{"user_id":7,"file_name":"me.png"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/avatar-upload", body))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])

	require.Len(t, pub.tasks, 1)
	assert.Equal(t, task.KindProcessAvatarUpload, pub.tasks[0].Type)
	assert.Equal(t, resp["task_id"], pub.tasks[0].TaskID)
	assert.Equal(t, broker.PriorityHigh, pub.priorities[0])
}

func TestStartAvatarUploadValidation(t *testing.T) {
	pub := &spyPublisher{}
	router := newTestRouter(pub)

	for name, body := range map[string]string{
		"not json":          `{{{`,
		"missing file name": `{"user_id":7}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tasks/avatar-upload", strings.NewReader(body))
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, pub.tasks)
}

func TestStartTokenCleanup(t *testing.T) {
	pub := &spyPublisher{}
	router := newTestRouter(pub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/cleanup", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.tasks, 1)
	assert.Equal(t, task.KindCleanupExpiredToken, pub.tasks[0].Type)
	assert.Equal(t, broker.PriorityLow, pub.priorities[0])
}

func TestStartRegistrationFollowUp(t *testing.T) {
	pub := &spyPublisher{}
	router := newTestRouter(pub)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"user_id":7}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/registration", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.tasks, 1)
	assert.Equal(t, task.KindProcessUserRegistration, pub.tasks[0].Type)
	assert.Equal(t, int32(7), pub.tasks[0].UserID)
}
