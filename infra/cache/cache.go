/*
Package cache stores the latest progress snapshot per task so clients that
connect mid-pipeline can be caught up before live events resume.

Two backends exist: Redis for multi-instance deployments and an in-process
expirable LRU when no Redis URL is configured. Both speak JSON blobs; the
cache never interprets the snapshot beyond its key.
*/
package cache

import (
	"context"
	"errors"
	"time"
)

// statusKeyPrefix namespaces task snapshots inside a shared Redis database.
const statusKeyPrefix = "task:status:"

// defaultStatusTTL bounds how long a finished task's snapshot lingers when
// the configuration does not say otherwise.
const defaultStatusTTL = 3600 * time.Second

// ErrMiss is returned by GetStatus when no snapshot exists for the task.
var ErrMiss = errors.New("cache: status not found")

// StatusStore persists the most recent progress snapshot of a task.
type StatusStore interface {
	// CacheStatus stores the snapshot under the task id, replacing any
	// previous one. The entry expires after an hour.
	CacheStatus(ctx context.Context, taskID string, snapshot []byte) error
	// GetStatus returns the stored snapshot or ErrMiss.
	GetStatus(ctx context.Context, taskID string) ([]byte, error)
}

func statusKey(taskID string) string {
	return statusKeyPrefix + taskID
}
