package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelforge/reelforge/internal/models"
)

// Response is the uniform API envelope
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListResponse wraps paginated collections
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeDomainError maps the shared error taxonomy onto HTTP status codes
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrDispatchFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrRepositoryUnavailable):
		s.logger.Error("repository unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parsePagination reads limit/offset query params with sane bounds
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- clients ---

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	client := &models.Client{Name: req.Name}
	if err := s.clients.Create(client); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, client)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	clients, total, err := s.clients.List(models.ClientListFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: clients, Total: total})
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.clients.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	writeData(w, http.StatusOK, client)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	client, err := s.clients.GetByID(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	if err := s.clients.Delete(id); err != nil {
		if errors.Is(err, models.ErrConflict) {
			writeError(w, http.StatusConflict, "client still has campaigns")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"deleted": id})
}

// --- campaigns ---

type campaignRequest struct {
	ClientID        string     `json:"client_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	Status          string     `json:"status"`
	Gender          string     `json:"gender"`
	Tone            string     `json:"tone"`
	Style           string     `json:"style"`
	TargetDuration  int        `json:"target_duration"`
	Voice           string     `json:"voice"`
	MusicVolume     float64    `json:"music_volume"`
	PublishSchedule string     `json:"publish_schedule"`
	AutoDeploy      bool       `json:"auto_deploy"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	campaign := &models.Campaign{
		ClientID:        req.ClientID,
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Status:          req.Status,
		Gender:          req.Gender,
		Tone:            req.Tone,
		Style:           req.Style,
		TargetDuration:  req.TargetDuration,
		Voice:           req.Voice,
		MusicVolume:     req.MusicVolume,
		PublishSchedule: req.PublishSchedule,
		AutoDeploy:      req.AutoDeploy,
	}
	if err := s.campaigns.Create(campaign); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, campaign)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	campaigns, total, err := s.campaigns.List(models.CampaignListFilter{
		ClientID: r.URL.Query().Get("client_id"),
		Search:   r.URL.Query().Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: campaigns, Total: total})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if campaign == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeData(w, http.StatusOK, campaign)
}

// --- contents ---

type contentRequest struct {
	CampaignID     string     `json:"campaign_id"`
	Subtitle       string     `json:"subtitle"`
	Topic          string     `json:"topic"`
	Platform       string     `json:"platform"`
	PublishDate    *time.Time `json:"publish_date"`
	TargetAudience string     `json:"target_audience"`
	Keywords       string     `json:"keywords"`
	Notes          string     `json:"notes"`
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	content := &models.Content{
		CampaignID:     req.CampaignID,
		Subtitle:       req.Subtitle,
		Topic:          req.Topic,
		Platform:       req.Platform,
		TargetAudience: req.TargetAudience,
		Keywords:       req.Keywords,
		Notes:          req.Notes,
	}
	if req.PublishDate != nil {
		content.PublishDate = *req.PublishDate
	}
	if err := s.contents.Create(content); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, content)
}

func (s *Server) handleListContents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	contents, total, err := s.contents.List(models.ContentListFilter{
		CampaignID: r.URL.Query().Get("campaign_id"),
		Status:     models.ContentStatus(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: contents, Total: total})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.contents.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	writeData(w, http.StatusOK, content)
}

// --- scripts ---

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.contents.GetByID(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}

	sc, err := s.scripts.Get(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no script for this content")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, sc)
}

func (s *Server) handlePutScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.contents.GetByID(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}

	var req struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Blocks == nil {
		writeError(w, http.StatusBadRequest, "blocks is required")
		return
	}

	sc, err := s.scripts.Replace(id, req.Blocks)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, sc)
}

// --- generation lifecycle ---

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    models.TaskKind `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	task, err := s.coord.StartGeneration(r.Context(), chi.URLParam(r, "id"), req.Kind, req.Payload)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, task)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.coord.CheckStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublishDate *time.Time `json:"publish_date"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	content, err := s.coord.Schedule(r.Context(), chi.URLParam(r, "id"), req.PublishDate)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, content)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	content, err := s.coord.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, content)
}
