package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var _ StatusStore = (*BreakerStore)(nil)

// BreakerStore wraps a StatusStore with a circuit breaker. The cache is a
// convenience layer: when the backend misbehaves, reads degrade to a miss and
// writes to a no-op instead of slowing the worker pipeline with timeouts.
type BreakerStore struct {
	next    StatusStore
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewBreakerStore(next StatusStore, logger *slog.Logger) *BreakerStore {
	settings := gobreaker.Settings{
		Name:    "status-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("status cache breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerStore{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (s *BreakerStore) CacheStatus(ctx context.Context, taskID string, snapshot []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.CacheStatus(ctx, taskID, snapshot)
	})
	if err != nil {
		s.logger.Warn("status cache write skipped", "task_id", taskID, "error", err)
	}
	return nil
}

func (s *BreakerStore) GetStatus(ctx context.Context, taskID string) ([]byte, error) {
	val, err := s.breaker.Execute(func() (interface{}, error) {
		snapshot, err := s.next.GetStatus(ctx, taskID)
		if errors.Is(err, ErrMiss) {
			// A miss is a valid answer, not a backend failure.
			return []byte(nil), nil
		}
		return snapshot, err
	})
	if err != nil {
		s.logger.Warn("status cache read degraded to miss", "task_id", taskID, "error", err)
		return nil, ErrMiss
	}
	snapshot := val.([]byte)
	if snapshot == nil {
		return nil, ErrMiss
	}
	return snapshot, nil
}
