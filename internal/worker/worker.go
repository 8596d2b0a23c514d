// Package worker drives generation tasks to completion without client
// polling: on a fixed interval it sweeps content items stuck in
// generating and folds their task results back through the lifecycle
// coordinator.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reelforge/reelforge/internal/lifecycle"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/repository"
)

// Worker sweeps in-flight generations on an interval
type Worker struct {
	contents  *repository.ContentRepository
	coord     *lifecycle.Coordinator
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker
func New(contents *repository.ContentRepository, coord *lifecycle.Coordinator, logger *slog.Logger, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Worker{
		contents:  contents,
		coord:     coord,
		logger:    logger.With("component", "worker"),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start launches the sweep loop. It runs until Stop is called or the
// parent context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("worker started", "interval", w.interval, "batch_size", w.batchSize)

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("worker stopped")
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the in-flight sweep
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Sweep checks one batch of generating contents. Exposed for tests and
// for a manual drain before shutdown.
func (w *Worker) Sweep(ctx context.Context) {
	contents, _, err := w.contents.List(models.ContentListFilter{
		Status: models.ContentStatusGenerating,
		Limit:  w.batchSize,
	})
	if err != nil {
		w.logger.Error("failed to list generating contents", "error", err)
		return
	}
	if len(contents) == 0 {
		return
	}

	w.logger.Debug("sweeping generating contents", "count", len(contents))

	for _, content := range contents {
		if ctx.Err() != nil {
			return
		}

		report, err := w.coord.CheckStatus(ctx, content.ID)
		if err != nil {
			w.logger.Error("status check failed", "content_id", content.ID, "error", err)
			continue
		}
		if report.PollError != "" {
			w.logger.Warn("poll failed, will retry next sweep", "content_id", content.ID, "error", report.PollError)
		}
	}
}
