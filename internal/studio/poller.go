package studio

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/internal/models"
)

// Poller maps one remote status query to the local task status taxonomy.
// Stateless and side-effect-free per call; polling a terminal task again
// returns the same terminal result (service contract). Each call carries
// its own timeout so a slow network call cannot stall the caller.
type Poller struct {
	client  *Client
	timeout time.Duration
}

// NewPoller creates a poller over a Studio client
func NewPoller(client *Client, timeout time.Duration) *Poller {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Poller{client: client, timeout: timeout}
}

// Poll queries one task handle. Transport failures come back as a
// transient failed result, never as an error: pollers must not crash on a
// flaky network call, and a timed-out poll says nothing about the task.
func (p *Poller) Poll(ctx context.Context, taskID string) PollResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.GetTask(ctx, taskID)
	if err != nil {
		return PollResult{
			Status:    models.TaskStatusFailed,
			Error:     "transport: " + err.Error(),
			Transient: true,
		}
	}

	return mapTaskResponse(resp)
}

// mapTaskResponse maps a remote status document to the local taxonomy
func mapTaskResponse(resp *TaskResponse) PollResult {
	switch resp.Status {
	case "pending", "queued":
		return PollResult{Status: models.TaskStatusPending, Progress: resp.Progress}
	case "running", "processing":
		return PollResult{Status: models.TaskStatusRunning, Progress: resp.Progress}
	case "succeeded", "completed":
		return PollResult{Status: models.TaskStatusSucceeded, Progress: 100, Result: resp.Result}
	case "failed", "error", "cancelled":
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "generation failed"
		}
		return PollResult{Status: models.TaskStatusFailed, Error: errMsg}
	default:
		// An unknown status is a contract drift, not a task verdict
		return PollResult{
			Status:    models.TaskStatusFailed,
			Error:     "unknown remote status: " + resp.Status,
			Transient: true,
		}
	}
}
