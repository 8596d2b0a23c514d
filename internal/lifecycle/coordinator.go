// Package lifecycle owns the content status state machine: when a
// generation job may be dispatched, how poll results are folded back into
// the script store, and how failures are reconciled. All status
// transitions for content items go through the coordinator; nothing else
// writes content statuses.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reelforge/reelforge/internal/metrics"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/repository"
	"github.com/reelforge/reelforge/internal/script"
	"github.com/reelforge/reelforge/internal/studio"
)

// Gateway submits generation jobs to the studio service. Implemented by
// *studio.Client; faked in tests.
type Gateway interface {
	Submit(ctx context.Context, kind string, payload json.RawMessage) (string, error)
}

// Poller queries one task handle. Implemented by *studio.Poller.
type Poller interface {
	Poll(ctx context.Context, taskID string) studio.PollResult
}

// Coordinator is the content lifecycle core
type Coordinator struct {
	contents *repository.ContentRepository
	tasks    *repository.TaskRepository
	scripts  *script.Store
	gateway  Gateway
	poller   Poller
	logger   *slog.Logger
	locks    *keyedMutex
}

// New creates a coordinator
func New(
	contents *repository.ContentRepository,
	tasks *repository.TaskRepository,
	scripts *script.Store,
	gateway Gateway,
	poller Poller,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		contents: contents,
		tasks:    tasks,
		scripts:  scripts,
		gateway:  gateway,
		poller:   poller,
		logger:   logger.With("component", "lifecycle"),
		locks:    newKeyedMutex(),
	}
}

// StatusReport is the outcome of one CheckStatus call.
type StatusReport struct {
	ContentID     string                 `json:"content_id"`
	ContentStatus models.ContentStatus   `json:"content_status"`
	Task          *models.GenerationTask `json:"task,omitempty"`
	Progress      int                    `json:"progress,omitempty"`
	// StaleResult marks a succeeded task whose blocks were not written
	// because a user edit superseded the script version seen at dispatch.
	StaleResult bool `json:"stale_result,omitempty"`
	// PollError carries a transient poll failure; nothing was mutated.
	PollError string `json:"poll_error,omitempty"`
}

// statuses a generation dispatch may start from; also the source set for
// the transition into generating
var generatableFrom = []models.ContentStatus{
	models.ContentStatusDraft,
	models.ContentStatusScheduled,
	models.ContentStatusFailed,
}

// StartGeneration validates preconditions, submits the job to the studio
// service and records the task. The precondition check and task creation
// are serialized per content id; across instances the unique active-task
// index arbitrates. On gateway failure nothing is recorded and the content
// status is left untouched.
func (c *Coordinator) StartGeneration(ctx context.Context, contentID string, kind models.TaskKind, payload json.RawMessage) (*models.GenerationTask, error) {
	if !kind.Valid() {
		return nil, models.Invalid("kind", "must be storyboard or stock_search")
	}

	unlock := c.locks.Lock(contentID)
	defer unlock()

	content, err := c.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, models.ErrNotFound)
	}

	if !content.Status.CanStartGeneration() {
		return nil, fmt.Errorf("%w: cannot start generation from status %s", models.ErrConflict, content.Status)
	}

	active, err := c.tasks.GetActive(contentID, kind)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: %s task %s already active", models.ErrConflict, kind, active.ID)
	}

	scriptVersion, err := c.scripts.Version(contentID)
	if err != nil {
		return nil, err
	}

	taskID, err := c.gateway.Submit(ctx, string(kind), payload)
	if err != nil {
		c.logger.Error("generation dispatch failed", "content_id", contentID, "kind", kind, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrDispatchFailed, err)
	}

	task := &models.GenerationTask{
		ContentID:     contentID,
		TaskID:        taskID,
		Kind:          kind,
		ScriptVersion: scriptVersion,
	}
	if err := c.tasks.Create(task); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Another instance won the dispatch race; its task stands,
			// ours is abandoned on the studio side
			c.logger.Warn("concurrent dispatch lost, abandoning remote task",
				"content_id", contentID, "kind", kind, "task_id", taskID)
			return nil, fmt.Errorf("%w: concurrent generation already dispatched", models.ErrConflict)
		}
		return nil, err
	}

	ok, err := c.contents.UpdateStatus(contentID, generatableFrom, models.ContentStatusGenerating)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("content status moved during dispatch", "content_id", contentID)
	}

	if m := metrics.Global(); m != nil {
		m.GenerationsDispatchedTotal.WithLabelValues(string(kind)).Inc()
		m.GenerationsActive.Inc()
	}

	c.logger.Info("generation dispatched",
		"content_id", contentID, "kind", kind, "task_id", taskID, "script_version", scriptVersion)

	return task, nil
}

// CheckStatus polls the active task for a content item, if any, and folds a
// terminal result back: on success the blocks are merged into the script
// store and the content becomes ready; on failure the content becomes
// failed with the error recorded. The merge runs at most once per task no
// matter how often CheckStatus is called; the conditional terminal claim on
// the task row is the guard.
func (c *Coordinator) CheckStatus(ctx context.Context, contentID string) (*StatusReport, error) {
	content, err := c.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, models.ErrNotFound)
	}

	task, err := c.tasks.GetActiveAny(contentID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		// Nothing in flight; report the last task for context
		latest, err := c.tasks.GetLatest(contentID)
		if err != nil {
			return nil, err
		}
		return &StatusReport{
			ContentID:     contentID,
			ContentStatus: content.Status,
			Task:          latest,
		}, nil
	}

	res := c.poller.Poll(ctx, task.TaskID)

	switch {
	case res.Status == models.TaskStatusPending:
		return &StatusReport{
			ContentID:     contentID,
			ContentStatus: content.Status,
			Task:          task,
			Progress:      res.Progress,
		}, nil

	case res.Status == models.TaskStatusRunning:
		if task.Status == models.TaskStatusPending {
			if err := c.tasks.MarkRunning(task.ID); err != nil {
				return nil, err
			}
			task.Status = models.TaskStatusRunning
		}
		return &StatusReport{
			ContentID:     contentID,
			ContentStatus: content.Status,
			Task:          task,
			Progress:      res.Progress,
		}, nil

	case res.Transient:
		// The poll call failed, the task did not; report and change nothing
		c.logger.Debug("transient poll failure", "content_id", contentID, "task_id", task.TaskID, "error", res.Error)
		return &StatusReport{
			ContentID:     contentID,
			ContentStatus: content.Status,
			Task:          task,
			PollError:     res.Error,
		}, nil

	case res.Status == models.TaskStatusSucceeded:
		return c.mergeSuccess(content, task, res)

	default: // terminal failure
		return c.recordFailure(content, task, res)
	}
}

// mergeSuccess claims the terminal transition and writes the result blocks.
func (c *Coordinator) mergeSuccess(content *models.Content, task *models.GenerationTask, res studio.PollResult) (*StatusReport, error) {
	// Decode before claiming so a malformed body is a transient poll
	// failure rather than a half-merged task
	var blocks []json.RawMessage
	if err := json.Unmarshal(res.Result, &blocks); err != nil {
		c.logger.Warn("malformed generation result", "task_id", task.TaskID, "error", err)
		return &StatusReport{
			ContentID:     content.ID,
			ContentStatus: content.Status,
			Task:          task,
			PollError:     "malformed result payload: " + err.Error(),
		}, nil
	}

	claimed, err := c.tasks.MarkSucceeded(task.ID, res.Result)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// A concurrent CheckStatus already merged; observe, don't repeat
		return c.snapshot(content.ID)
	}

	task.Status = models.TaskStatusSucceeded
	task.Result = res.Result

	stale := false
	if _, err := c.scripts.CompareAndReplace(content.ID, blocks, task.ScriptVersion); err != nil {
		if !errors.Is(err, models.ErrStaleScript) {
			return nil, err
		}
		// A user edit outran the generation; their script wins, the
		// result stays on the task row
		stale = true
		c.logger.Warn("generation result stale, keeping user edit",
			"content_id", content.ID, "task_id", task.TaskID, "dispatch_version", task.ScriptVersion)
		if m := metrics.Global(); m != nil {
			m.StaleMergesTotal.Inc()
		}
	}

	ok, err := c.contents.UpdateStatus(content.ID, []models.ContentStatus{models.ContentStatusGenerating}, models.ContentStatusReady)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("content left generating before merge", "content_id", content.ID)
	}

	if m := metrics.Global(); m != nil {
		m.GenerationsSucceededTotal.WithLabelValues(string(task.Kind)).Inc()
		m.GenerationsActive.Dec()
	}

	c.logger.Info("generation merged",
		"content_id", content.ID, "task_id", task.TaskID, "blocks", len(blocks), "stale", stale)

	return &StatusReport{
		ContentID:     content.ID,
		ContentStatus: models.ContentStatusReady,
		Task:          task,
		Progress:      100,
		StaleResult:   stale,
	}, nil
}

// recordFailure claims the terminal transition for a failed task. The
// script store is untouched: generation failure is a no-op on prior
// script content.
func (c *Coordinator) recordFailure(content *models.Content, task *models.GenerationTask, res studio.PollResult) (*StatusReport, error) {
	claimed, err := c.tasks.MarkFailed(task.ID, res.Error)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return c.snapshot(content.ID)
	}

	task.Status = models.TaskStatusFailed
	task.Error = res.Error

	ok, err := c.contents.UpdateStatus(content.ID, []models.ContentStatus{models.ContentStatusGenerating}, models.ContentStatusFailed)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("content left generating before failure", "content_id", content.ID)
	}

	if m := metrics.Global(); m != nil {
		m.GenerationsFailedTotal.WithLabelValues(string(task.Kind)).Inc()
		m.GenerationsActive.Dec()
	}

	c.logger.Info("generation failed",
		"content_id", content.ID, "task_id", task.TaskID, "error", res.Error)

	return &StatusReport{
		ContentID:     content.ID,
		ContentStatus: models.ContentStatusFailed,
		Task:          task,
	}, nil
}

// snapshot re-reads content and latest task after losing a claim race
func (c *Coordinator) snapshot(contentID string) (*StatusReport, error) {
	content, err := c.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, models.ErrNotFound)
	}
	latest, err := c.tasks.GetLatest(contentID)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		ContentID:     contentID,
		ContentStatus: content.Status,
		Task:          latest,
	}, nil
}

// Publish transitions a ready content item to published.
func (c *Coordinator) Publish(ctx context.Context, contentID string) (*models.Content, error) {
	content, err := c.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, models.ErrNotFound)
	}

	ok, err := c.contents.UpdateStatus(contentID, []models.ContentStatus{models.ContentStatusReady}, models.ContentStatusPublished)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot publish from status %s", models.ErrConflict, content.Status)
	}

	c.logger.Info("content published", "content_id", contentID)

	content.Status = models.ContentStatusPublished
	return content, nil
}

// Schedule transitions a draft content item to scheduled, optionally
// moving its publish date.
func (c *Coordinator) Schedule(ctx context.Context, contentID string, publishDate *time.Time) (*models.Content, error) {
	content, err := c.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, models.ErrNotFound)
	}

	ok, err := c.contents.UpdateStatus(contentID, []models.ContentStatus{models.ContentStatusDraft}, models.ContentStatusScheduled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot schedule from status %s", models.ErrConflict, content.Status)
	}

	if publishDate != nil {
		if err := c.contents.UpdatePublishDate(contentID, *publishDate); err != nil {
			return nil, err
		}
		content.PublishDate = *publishDate
	}

	content.Status = models.ContentStatusScheduled
	return content, nil
}
