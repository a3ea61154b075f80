/*
Package tasks implements the worker-side processing of the task catalogue.

The handler is the single entry point the consumer dispatches decoded events
to; it branches on the task kind. Returned errors feed the consumer's retry
cycle, so a handler only fails for conditions that a later attempt could
plausibly resolve.
*/
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmesh/task-delivery-service/config"
	"github.com/taskmesh/task-delivery-service/infra/broker"
	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/infra/mail"
	"github.com/taskmesh/task-delivery-service/infra/store"
	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/task"
)

// tokenCleanupBatchSize bounds each DELETE statement during token cleanup.
const tokenCleanupBatchSize = 100

// errBrokerRequired aborts worker startup when MESSAGE_BROKER is unset: a
// worker with nothing to consume is a misconfiguration, not a degraded mode.
var errBrokerRequired = errors.New("tasks: worker requires MESSAGE_BROKER to be configured")

// TokenStore is the persistence slice the cleanup task needs.
type TokenStore interface {
	DeleteExpiredTokens(ctx context.Context, batchSize int) (int64, error)
}

// UserStore is the persistence slice the registration follow-up needs.
type UserStore interface {
	FindUserByID(ctx context.Context, id int32) (store.User, error)
}

var _ task.Handler = (*Handler)(nil)

// Handler processes task events from the broker.
type Handler struct {
	tokens   TokenStore
	users    UserStore
	mailer   mail.Mailer
	producer broker.Producer
	cache    cache.StatusStore
	logger   *slog.Logger

	// sleep paces the avatar pipeline stages; tests replace it.
	sleep func(ctx context.Context, d time.Duration)
}

func NewHandler(
	tokens TokenStore,
	users UserStore,
	mailer mail.Mailer,
	producer broker.Producer,
	statusCache cache.StatusStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tokens:   tokens,
		users:    users,
		mailer:   mailer,
		producer: producer,
		cache:    statusCache,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// HandleTask branches on the task kind. Unknown kinds are an error so the
// retry cycle surfaces catalogue drift between producer and worker versions.
func (h *Handler) HandleTask(ctx context.Context, ev *task.Event) error {
	h.logger.Info("processing task",
		"event_id", ev.ID,
		"type", ev.Task.Type,
		"priority", ev.Priority.String(),
		"retry_count", ev.RetryCount,
	)

	switch ev.Task.Type {
	case task.KindSendEmail:
		return h.handleSendEmail(ctx, ev.Task)
	case task.KindCleanupExpiredToken:
		return h.handleTokenCleanup(ctx)
	case task.KindProcessUserRegistration:
		return h.handleUserRegistration(ctx, ev.Task)
	case task.KindProcessAvatarUpload:
		return h.handleAvatarUpload(ctx, ev.Task)
	default:
		return fmt.Errorf("tasks: unknown kind %q", ev.Task.Type)
	}
}

func (h *Handler) handleSendEmail(ctx context.Context, t task.Task) error {
	if h.mailer == nil {
		return fmt.Errorf("tasks: send email to %s: smtp not configured", t.To)
	}
	if err := h.mailer.Send(ctx, t.To, t.Subject, t.TextBody, t.HTMLBody); err != nil {
		return err
	}
	h.logger.Info("email sent", "to", t.To, "subject", t.Subject)
	return nil
}

func (h *Handler) handleTokenCleanup(ctx context.Context) error {
	deleted, err := h.tokens.DeleteExpiredTokens(ctx, tokenCleanupBatchSize)
	if err != nil {
		return err
	}
	// Zero rows is the common case and still a success.
	h.logger.Info("expired tokens purged", "deleted", deleted)
	return nil
}

// publishBroadcast routes a progress message to the relay destination. A nil
// producer silently drops it: progress streaming is best effort.
func (h *Handler) publishBroadcast(ctx context.Context, eventType string, data any) error {
	if h.producer == nil {
		h.logger.Debug("message broker disabled, dropping broadcast", "event_type", eventType)
		return nil
	}
	msg, err := model.NewBroadcastMessage(eventType, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("tasks: marshal broadcast: %w", err)
	}
	return h.producer.PublishJSON(ctx, payload, config.DestinationBroadcasts)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
