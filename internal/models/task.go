package models

import (
	"encoding/json"
	"time"
)

// TaskKind enumerates supported generation job categories.
type TaskKind string

const (
	TaskKindStoryboard  TaskKind = "storyboard"
	TaskKindStockSearch TaskKind = "stock_search"
)

// Valid reports whether the kind is one the studio service understands.
func (k TaskKind) Valid() bool {
	return k == TaskKindStoryboard || k == TaskKindStockSearch
}

// TaskStatus enumerates generation task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the task can no longer change state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// GenerationTask represents one asynchronous job dispatched to the studio
// service. TaskID is the opaque handle issued by the service; ScriptVersion
// is the script version observed at dispatch, used to detect user edits
// that arrived while the job was in flight.
type GenerationTask struct {
	ID            string          `json:"id"`
	ContentID     string          `json:"content_id"`
	TaskID        string          `json:"task_id"`
	Kind          TaskKind        `json:"kind"`
	Status        TaskStatus      `json:"status"`
	ScriptVersion int64           `json:"script_version"`
	Result        json.RawMessage `json:"result,omitempty"` // present only when succeeded
	Error         string          `json:"error,omitempty"`  // present only when failed
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
