// Package model holds the wire types shared between the worker pipeline, the
// broadcast relay and the WebSocket edge.
package model

import (
	"encoding/json"
	"fmt"
)

// BroadcastMessage is the envelope relayed from the worker pipeline to live
// client connections. It has no identity beyond its payload; routing inspects
// the data object.
type BroadcastMessage struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// NewBroadcastMessage serializes data into a broadcast envelope.
func NewBroadcastMessage(eventType string, data any) (BroadcastMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return BroadcastMessage{}, fmt.Errorf("broadcast message: marshal data: %w", err)
	}
	return BroadcastMessage{EventType: eventType, Data: raw}, nil
}

// UserKey derives the legacy registry key for user-addressed broadcasts.
func UserKey(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

// RouteKey resolves the registry key for this message: data.task_id when
// present, the legacy data.user_id otherwise. The second return is false when
// the message carries neither.
func (m BroadcastMessage) RouteKey() (string, bool) {
	var probe struct {
		TaskID string `json:"task_id"`
		UserID *int64 `json:"user_id"`
	}
	if err := json.Unmarshal(m.Data, &probe); err != nil {
		return "", false
	}
	if probe.TaskID != "" {
		return probe.TaskID, true
	}
	if probe.UserID != nil {
		return UserKey(*probe.UserID), true
	}
	return "", false
}
