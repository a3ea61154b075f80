package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskmesh/task-delivery-service/infra/cache"
	"github.com/taskmesh/task-delivery-service/internal/domain/model"
	"github.com/taskmesh/task-delivery-service/internal/domain/registry"
)

// Streamer is the contract WebSocket handlers use to attach a client to the
// progress stream for a correlation key.
type Streamer interface {
	// Subscribe creates the client's outbox, seeds it with the cached
	// snapshot when one exists, and registers it for live delivery. The
	// snapshot is always delivered before any live event.
	Subscribe(ctx context.Context, key string) (*registry.Outbox, error)
	Unsubscribe(key string)
}

type ProgressStreamer struct {
	registry registry.Broadcaster
	cache    cache.StatusStore
	logger   *slog.Logger
}

func NewProgressStreamer(reg registry.Broadcaster, store cache.StatusStore, logger *slog.Logger) *ProgressStreamer {
	return &ProgressStreamer{
		registry: reg,
		cache:    store,
		logger:   logger,
	}
}

func (s *ProgressStreamer) Subscribe(ctx context.Context, key string) (*registry.Outbox, error) {
	out := registry.NewOutbox()

	// Seed before Register: once registered, live events interleave, and the
	// client must see the catch-up snapshot first.
	snapshot, err := s.cache.GetStatus(ctx, key)
	switch {
	case err == nil:
		out.Push(model.BroadcastMessage{
			EventType: model.EventAvatarUploadProgress,
			Data:      snapshot,
		})
		s.logger.Debug("replayed cached status", "key", key)
	case errors.Is(err, cache.ErrMiss):
		// Fresh subscription, nothing to replay.
	default:
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	s.registry.Register(key, out)
	return out, nil
}

func (s *ProgressStreamer) Unsubscribe(key string) {
	s.registry.Unregister(key)
}
