// Package task defines the application task catalogue carried inside broker
// event envelopes, plus the publish helpers used by request handlers.
package task

import "fmt"

// Kind discriminates the task union on the wire ("type" field).
type Kind string

const (
	KindSendEmail               Kind = "SendEmail"
	KindCleanupExpiredToken     Kind = "CleanupExpiredToken"
	KindProcessUserRegistration Kind = "ProcessUserRegistration"
	KindProcessAvatarUpload     Kind = "ProcessAvatarUpload"
)

// Task is the tagged payload union. Only the fields of the variant named by
// Type are meaningful; the rest stay at their zero values and are omitted on
// the wire.
type Task struct {
	Type Kind `json:"type"`

	// SendEmail
	To       string  `json:"to,omitempty"`
	Subject  string  `json:"subject,omitempty"`
	TextBody *string `json:"text_body,omitempty"`
	HTMLBody *string `json:"html_body,omitempty"`

	// ProcessUserRegistration, ProcessAvatarUpload
	UserID int32 `json:"user_id,omitempty"`

	// ProcessAvatarUpload
	TaskID   string `json:"task_id,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// NewSendEmail builds an email delivery task. Either body may be nil.
func NewSendEmail(to, subject string, textBody, htmlBody *string) Task {
	return Task{
		Type:     KindSendEmail,
		To:       to,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// NewCleanupExpiredToken builds the expired-token purge task.
func NewCleanupExpiredToken() Task {
	return Task{Type: KindCleanupExpiredToken}
}

// NewProcessUserRegistration builds the post-registration follow-up task.
func NewProcessUserRegistration(userID int32) Task {
	return Task{Type: KindProcessUserRegistration, UserID: userID}
}

// NewProcessAvatarUpload builds the avatar processing task. taskID is the
// correlation key clients use to follow progress over WebSocket.
func NewProcessAvatarUpload(taskID string, userID int32, fileName string) Task {
	return Task{
		Type:     KindProcessAvatarUpload,
		TaskID:   taskID,
		UserID:   userID,
		FileName: fileName,
	}
}

// Validate rejects payloads whose tag is outside the catalogue.
func (t Task) Validate() error {
	switch t.Type {
	case KindSendEmail, KindCleanupExpiredToken, KindProcessUserRegistration, KindProcessAvatarUpload:
		return nil
	default:
		return fmt.Errorf("task: unknown kind %q", t.Type)
	}
}
