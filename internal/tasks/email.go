package tasks

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

const welcomeSubject = "Welcome aboard!"

var welcomeHTML = template.Must(template.New("welcome").Parse(`<html>
<body>
  <h1>Welcome, {{.Name}}!</h1>
  <p>Your account is ready. We are glad to have you with us.</p>
  <p>If you did not create this account, please contact support.</p>
</body>
</html>`))

// handleUserRegistration loads the user and enqueues the welcome email as a
// separate SendEmail task, keeping SMTP latency out of this handler and
// letting email delivery retry independently.
func (h *Handler) handleUserRegistration(ctx context.Context, t task.Task) error {
	user, err := h.users.FindUserByID(ctx, t.UserID)
	if err != nil {
		return fmt.Errorf("tasks: registration follow-up for user %d: %w", t.UserID, err)
	}

	var html strings.Builder
	if err := welcomeHTML.Execute(&html, struct{ Name string }{Name: user.DisplayName()}); err != nil {
		return fmt.Errorf("tasks: render welcome email: %w", err)
	}
	text := fmt.Sprintf("Welcome, %s! Your account is ready.", user.DisplayName())

	if h.producer == nil {
		h.logger.Warn("message broker disabled, dropping welcome email", "user_id", user.ID)
		return nil
	}

	htmlBody := html.String()
	email := task.NewSendEmail(user.Email, welcomeSubject, &text, &htmlBody)
	if err := task.Publish(ctx, h.producer, email, config.DestinationEmails); err != nil {
		return fmt.Errorf("tasks: enqueue welcome email for user %d: %w", user.ID, err)
	}

	h.logger.Info("welcome email enqueued", "user_id", user.ID, "email", user.Email)
	return nil
}
