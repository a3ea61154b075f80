package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	_, err := s.GetStatus(ctx, "unknown")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.CacheStatus(ctx, "task-1", []byte(`{"progress":40}`)))
	got, err := s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":40}`, string(got))

	// Last write wins.
	require.NoError(t, s.CacheStatus(ctx, "task-1", []byte(`{"progress":80}`)))
	got, err = s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":80}`, string(got))
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	buf := []byte(`{"progress":10}`)
	require.NoError(t, s.CacheStatus(ctx, "task-1", buf))
	buf[2] = 'x'

	got, err := s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":10}`, string(got))
}

// failingStore simulates a broken backend.
type failingStore struct{}

func (failingStore) CacheStatus(context.Context, string, []byte) error {
	return errors.New("backend down")
}

func (failingStore) GetStatus(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func TestBreakerDegradesFailuresToMiss(t *testing.T) {
	s := NewBreakerStore(failingStore{}, discardLogger())
	ctx := context.Background()

	// Writes swallow the failure so the worker pipeline continues.
	assert.NoError(t, s.CacheStatus(ctx, "task-1", []byte(`{}`)))

	// Reads degrade to a miss.
	_, err := s.GetStatus(ctx, "task-1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	s := NewBreakerStore(failingStore{}, discardLogger())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.GetStatus(ctx, "task-1")
		assert.ErrorIs(t, err, ErrMiss)
	}
	// Open breaker still presents the same degraded surface.
	assert.NoError(t, s.CacheStatus(ctx, "task-1", []byte(`{}`)))
}

func TestBreakerPassesThroughHealthyBackend(t *testing.T) {
	s := NewBreakerStore(NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	_, err := s.GetStatus(ctx, "task-1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.CacheStatus(ctx, "task-1", []byte(`{"progress":25}`)))
	got, err := s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":25}`, string(got))
}

func TestStatusKeyNamespacing(t *testing.T) {
	assert.Equal(t, "task:status:abc", statusKey("abc"))
}
