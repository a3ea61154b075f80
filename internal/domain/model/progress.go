package model

import "time"

// Broadcast event types emitted by the avatar upload pipeline.
const (
	EventAvatarUploadProgress = "avatar_upload_progress"
	EventAvatarUploadComplete = "avatar_upload_complete"
)

// AvatarUploadProgress is the snapshot published per pipeline stage and cached
// for clients that connect after progress has already started.
type AvatarUploadProgress struct {
	TaskID    string    `json:"task_id"`
	UserID    int32     `json:"user_id"`
	Progress  int       `json:"progress"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAvatarUploadProgress builds a progress snapshot stamped with the current
// time.
func NewAvatarUploadProgress(taskID string, userID int32, progress int, status string) AvatarUploadProgress {
	return AvatarUploadProgress{
		TaskID:    taskID,
		UserID:    userID,
		Progress:  progress,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// WithMessage attaches a human-readable stage description.
func (p AvatarUploadProgress) WithMessage(msg string) AvatarUploadProgress {
	p.Message = msg
	return p
}
