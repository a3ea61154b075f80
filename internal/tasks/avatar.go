package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

// avatarStage is one step of the simulated avatar processing pipeline.
type avatarStage struct {
	progress int
	message  string
	delay    time.Duration
}

// avatarStages paces the pipeline. The delays are part of the contract with
// the frontend progress bar, not incidental.
var avatarStages = []avatarStage{
	{10, "Validating file...", 100 * time.Millisecond},
	{25, "Preparing upload...", 200 * time.Millisecond},
	{40, "Processing image...", 400 * time.Millisecond},
	{60, "Optimizing...", 500 * time.Millisecond},
	{80, "Finalizing...", 300 * time.Millisecond},
	{100, "Upload complete!", 200 * time.Millisecond},
}

// handleAvatarUpload walks the pipeline stages. Each stage first caches its
// snapshot, then broadcasts it, so a client connecting between the two sees
// the stage via replay rather than a gap.
func (h *Handler) handleAvatarUpload(ctx context.Context, t task.Task) error {
	h.logger.Info("avatar upload started",
		"task_id", t.TaskID,
		"user_id", t.UserID,
		"file_name", t.FileName,
	)

	for _, stage := range avatarStages {
		h.sleep(ctx, stage.delay)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tasks: avatar upload %s interrupted: %w", t.TaskID, err)
		}

		status := "processing"
		if stage.progress == 100 {
			status = "completed"
		}
		snapshot := model.NewAvatarUploadProgress(t.TaskID, t.UserID, stage.progress, status).
			WithMessage(stage.message)

		if err := h.cacheSnapshot(ctx, t.TaskID, snapshot); err != nil {
			h.logger.Warn("avatar status cache write failed", "task_id", t.TaskID, "error", err)
		}
		if err := h.publishBroadcast(ctx, model.EventAvatarUploadProgress, snapshot); err != nil {
			return fmt.Errorf("tasks: broadcast avatar progress %s: %w", t.TaskID, err)
		}
	}

	done := model.NewAvatarUploadProgress(t.TaskID, t.UserID, 100, "completed").
		WithMessage("Avatar uploaded successfully")
	if err := h.publishBroadcast(ctx, model.EventAvatarUploadComplete, done); err != nil {
		return fmt.Errorf("tasks: broadcast avatar completion %s: %w", t.TaskID, err)
	}

	h.logger.Info("avatar upload finished", "task_id", t.TaskID, "user_id", t.UserID)
	return nil
}

func (h *Handler) cacheSnapshot(ctx context.Context, taskID string, snapshot model.AvatarUploadProgress) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return h.cache.CacheStatus(ctx, taskID, raw)
}
