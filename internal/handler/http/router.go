// Package http is the boundary surface that lets clients trigger tasks and
// attach to their progress streams.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
	"github.com/taskmesh/task-delivery-service/internal/handler/ws"
	"github.com/taskmesh/task-delivery-service/internal/service"
)

type TaskHandler struct {
	publisher service.Publisher
	logger    *slog.Logger
}

func NewTaskHandler(publisher service.Publisher, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		publisher: publisher,
		logger:    logger,
	}
}

// NewRouter assembles the HTTP surface: health, task triggers and the
// WebSocket progress endpoints.
func NewRouter(tasks *TaskHandler, progress *ws.ProgressHandler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/avatar-upload", tasks.StartAvatarUpload)
		r.Post("/cleanup", tasks.StartTokenCleanup)
		r.Post("/registration", tasks.StartRegistrationFollowUp)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/tasks/{task_id}", progress.TaskProgress)
		r.Get("/users/{user_id}", progress.UserEvents)
	})

	return r
}

type avatarUploadRequest struct {
	UserID   int32  `json:"user_id"`
	FileName string `json:"file_name"`
}

// StartAvatarUpload assigns a task id, enqueues the pipeline task with high
// priority and returns the id so the client can open the progress socket.
func (h *TaskHandler) StartAvatarUpload(w http.ResponseWriter, r *http.Request) {
	var req avatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	taskID := uuid.NewString()
	t := task.NewProcessAvatarUpload(taskID, req.UserID, req.FileName)
	if err := h.publisher.PublishWithPriority(r.Context(), t, broker.PriorityHigh, ""); err != nil {
		h.logger.Error("enqueue avatar upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "queued",
	})
}

// StartTokenCleanup enqueues the expired-token purge with low priority.
func (h *TaskHandler) StartTokenCleanup(w http.ResponseWriter, r *http.Request) {
	t := task.NewCleanupExpiredToken()
	if err := h.publisher.PublishWithPriority(r.Context(), t, broker.PriorityLow, ""); err != nil {
		h.logger.Error("enqueue token cleanup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type registrationRequest struct {
	UserID int32 `json:"user_id"`
}

// StartRegistrationFollowUp enqueues the post-registration follow-up task.
func (h *TaskHandler) StartRegistrationFollowUp(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	t := task.NewProcessUserRegistration(req.UserID)
	if err := h.publisher.Publish(r.Context(), t, config.DestinationTasks); err != nil {
		h.logger.Error("enqueue registration follow-up failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
