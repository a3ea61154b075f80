/*
Package registry provides the in-process directory of live client connections.

Every WebSocket connection registers an unbounded outbox under its correlation
key (a task id, or "user-{id}" for legacy user-addressed traffic). The
broadcast forwarder delivers into the registry; delivery to an absent key is a
silent no-op because "nobody is watching" is not a fault.
*/
package registry

import (
	"log/slog"
	"sync"

	"github.com/taskmesh/task-delivery-service/internal/domain/model"
)

// Interface guard
var _ Broadcaster = (*Registry)(nil)

// Broadcaster defines the gateway for connection registration and message
// delivery used by the forwarder and the WebSocket handlers.
type Broadcaster interface {
	Register(key string, out *Outbox)
	Unregister(key string)
	// SendTo reports whether a live connection received the message.
	SendTo(key string, msg model.BroadcastMessage) bool
	SendToAll(msg model.BroadcastMessage)
}

// Registry maps correlation keys to connection outboxes. At most one entry
// exists per key; registering an existing key silently replaces the previous
// outbox without notifying its connection.
//
// It is the only process-wide mutable state shared between task families and
// is guarded by a single read/write lock: deliveries to disjoint connections
// proceed concurrently under the read lock, mutations take the write lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Outbox
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Outbox),
		logger:  logger,
	}
}

// Register attaches an outbox under the key, replacing any previous entry.
func (r *Registry) Register(key string, out *Outbox) {
	r.mu.Lock()
	r.entries[key] = out
	r.mu.Unlock()
	r.logger.Info("registered connection", "key", key)
}

// Unregister removes the entry for the key. Safe to call for absent keys.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
	r.logger.Info("unregistered connection", "key", key)
}

// SendTo pushes the message into the outbox registered under the key. The
// push never blocks; an absent key returns false without error. Callers
// cannot distinguish "no such connection" from "connection about to close".
func (r *Registry) SendTo(key string, msg model.BroadcastMessage) bool {
	r.mu.RLock()
	out, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no live connection for key", "key", key)
		return false
	}
	return out.Push(msg)
}

// SendToAll pushes the message to every registered connection. An empty
// registry is a no-op.
func (r *Registry) SendToAll(msg model.BroadcastMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, out := range r.entries {
		out.Push(msg)
	}
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Shutdown closes every outbox so connection write loops terminate.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, out := range r.entries {
		out.Close()
		delete(r.entries, key)
	}
}
