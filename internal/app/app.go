// Package app wires the service together: storage, studio client,
// lifecycle coordinator, background worker and the HTTP servers. Run
// blocks until the context is cancelled, then shuts everything down in
// reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelforge/reelforge/internal/api"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/db"
	"github.com/reelforge/reelforge/internal/lifecycle"
	"github.com/reelforge/reelforge/internal/metrics"
	"github.com/reelforge/reelforge/internal/repository"
	"github.com/reelforge/reelforge/internal/script"
	"github.com/reelforge/reelforge/internal/studio"
	"github.com/reelforge/reelforge/internal/worker"
)

// App holds the assembled service
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	database   *db.DB
	scripts    *script.Store
	worker     *worker.Worker
	apiServer  *http.Server
	metricsSrv *http.Server
}

// New assembles the service from configuration
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	scripts, err := script.NewStore(cfg.Scripts.Path)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open script store: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.SetGlobal(metrics.New())
	}

	studioClient := studio.NewClient(cfg.Studio.BaseURL, cfg.Studio.APIKey, cfg.Studio.RequestTimeout)
	poller := studio.NewPoller(studioClient, cfg.Studio.PollTimeout)

	clients := repository.NewClientRepository(database.DB)
	campaigns := repository.NewCampaignRepository(database.DB)
	contents := repository.NewContentRepository(database.DB)
	tasks := repository.NewTaskRepository(database.DB)

	coord := lifecycle.New(contents, tasks, scripts, studioClient, poller, logger)

	server := api.NewServer(clients, campaigns, contents, tasks, scripts, coord, logger, cfg.Server.APIKey)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		database: database,
		scripts:  scripts,
		apiServer: &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      server.Router(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}

	if cfg.Worker.Enabled {
		a.worker = worker.New(contents, coord, logger, cfg.Worker.PollInterval, cfg.Worker.BatchSize)
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Global().Handler())
		a.metricsSrv = &http.Server{
			Addr:    cfg.Metrics.ListenAddr,
			Handler: mux,
		}
	}

	return a, nil
}

// Run starts all components and blocks until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("api server listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsSrv != nil {
		go func() {
			a.logger.Info("metrics server listening", "addr", a.cfg.Metrics.ListenAddr)
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if a.worker != nil {
		a.worker.Start(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		a.logger.Error("server failed", "error", err)
		a.shutdown()
		return err
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown failed", "error", err)
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if err := a.scripts.Close(); err != nil {
		a.logger.Error("script store close failed", "error", err)
	}
	if err := a.database.Close(); err != nil {
		a.logger.Error("database close failed", "error", err)
	}
	a.logger.Info("shutdown complete")
}
