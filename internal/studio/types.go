package studio

import (
	"encoding/json"

	"github.com/reelforge/reelforge/internal/models"
)

// SubmitRequest is the request body for POST /api/v1/generate
type SubmitRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubmitResponse is the response for POST /api/v1/generate
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// TaskResponse is the response for GET /api/v1/tasks/{id}
type TaskResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	Progress int             `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// PollResult is one observation of a remote task, mapped to the local
// status taxonomy. Transient marks a failed observation that says nothing
// about the task itself (timeout, connection refused, malformed body):
// callers must not treat it as permanent task failure.
type PollResult struct {
	Status    models.TaskStatus
	Progress  int
	Result    json.RawMessage
	Error     string
	Transient bool
}
