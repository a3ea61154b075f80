package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ StatusStore = (*MemoryStore)(nil)

// memoryStoreSize caps the number of concurrently tracked tasks; beyond it
// the least recently touched snapshot is evicted early.
const memoryStoreSize = 10000

// MemoryStore is the single-instance fallback used when no Redis URL is
// configured. Snapshots expire on the same schedule as the Redis backend.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore builds the fallback store. A non-positive ttl falls back to
// the default hour.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, []byte](memoryStoreSize, nil, ttl),
	}
}

func (s *MemoryStore) CacheStatus(_ context.Context, taskID string, snapshot []byte) error {
	// Copy: callers may reuse the buffer after we return.
	stored := make([]byte, len(snapshot))
	copy(stored, snapshot)
	s.lru.Add(statusKey(taskID), stored)
	return nil
}

func (s *MemoryStore) GetStatus(_ context.Context, taskID string) ([]byte, error) {
	val, ok := s.lru.Get(statusKey(taskID))
	if !ok {
		return nil, ErrMiss
	}
	return val, nil
}
