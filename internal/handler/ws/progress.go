// Package ws exposes the realtime progress stream over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/service"
)

type ProgressHandler struct {
	logger   *slog.Logger
	streamer service.Streamer
	upgrader websocket.Upgrader
}

func NewProgressHandler(logger *slog.Logger, streamer service.Streamer) *ProgressHandler {
	return &ProgressHandler{
		logger:   logger,
		streamer: streamer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

// TaskProgress streams progress events for GET /ws/tasks/{task_id}.
func (h *ProgressHandler) TaskProgress(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "task_id"))
}

// UserEvents streams user-addressed events for GET /ws/users/{user_id}, the
// legacy subscription path. Malformed ids are rejected before upgrading.
func (h *ProgressHandler) UserEvents(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	h.serve(w, r, model.UserKey(userID))
}

func (h *ProgressHandler) serve(w http.ResponseWriter, r *http.Request, key string) {
	// Upgrade first: a cache failure after upgrade can still be reported
	// over the socket close handshake, the reverse cannot.
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "key", key, "error", err)
		return
	}
	defer ws.Close()

	out, err := h.streamer.Subscribe(r.Context(), key)
	if err != nil {
		h.logger.Error("ws subscribe failed", "key", key, "error", err)
		return
	}
	defer h.streamer.Unsubscribe(key)

	h.logger.Info("ws opened", "key", key)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer pump. Owns all writes to the socket.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			msg, ok := out.Pull(ctx)
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("ws marshal failed", "key", key, "error", err)
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws send failed", "key", key, "error", err)
				return
			}
		}
	}()

	// Reader pump. Client frames are ignored; reading only detects the
	// close handshake and network failures.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writeDone
	h.logger.Info("ws closed", "key", key)
}
