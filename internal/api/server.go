// Package api exposes the HTTP management surface: clients, campaigns,
// content items, scripts and the generation endpoints. Responses use a
// uniform envelope; domain errors map onto HTTP status codes here and
// nowhere else.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reelforge/reelforge/internal/lifecycle"
	"github.com/reelforge/reelforge/internal/metrics"
	"github.com/reelforge/reelforge/internal/repository"
	"github.com/reelforge/reelforge/internal/script"
)

// Server is the HTTP API server
type Server struct {
	clients   *repository.ClientRepository
	campaigns *repository.CampaignRepository
	contents  *repository.ContentRepository
	tasks     *repository.TaskRepository
	scripts   *script.Store
	coord     *lifecycle.Coordinator
	logger    *slog.Logger
	apiKey    string
}

// NewServer creates an API server
func NewServer(
	clients *repository.ClientRepository,
	campaigns *repository.CampaignRepository,
	contents *repository.ContentRepository,
	tasks *repository.TaskRepository,
	scripts *script.Store,
	coord *lifecycle.Coordinator,
	logger *slog.Logger,
	apiKey string,
) *Server {
	return &Server{
		clients:   clients,
		campaigns: campaigns,
		contents:  contents,
		tasks:     tasks,
		scripts:   scripts,
		coord:     coord,
		logger:    logger.With("component", "api"),
		apiKey:    apiKey,
	}
}

// Router builds the chi router with all routes mounted
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", s.handleCreateClient)
			r.Get("/", s.handleListClients)
			r.Get("/{id}", s.handleGetClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.handleCreateCampaign)
			r.Get("/", s.handleListCampaigns)
			r.Get("/{id}", s.handleGetCampaign)
		})

		r.Route("/contents", func(r chi.Router) {
			r.Post("/", s.handleCreateContent)
			r.Get("/", s.handleListContents)
			r.Get("/{id}", s.handleGetContent)

			r.Get("/{id}/script", s.handleGetScript)
			r.Put("/{id}/script", s.handlePutScript)

			r.Post("/{id}/generate", s.handleGenerate)
			r.Get("/{id}/status", s.handleStatus)

			r.Post("/{id}/schedule", s.handleSchedule)
			r.Post("/{id}/publish", s.handlePublish)
		})
	})

	return r
}

// logRequests logs one line per request after it completes
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}
