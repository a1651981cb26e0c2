package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

type projectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Progress    int      `json:"progress,omitempty" validate:"gte=0,lte=100"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := models.Project{
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
		Topics:      req.Topics,
		Progress:    req.Progress,
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := models.Project{
		ID:          chi.URLParam(r, "projectID"),
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
		Topics:      req.Topics,
		Progress:    req.Progress,
	}
	if err := s.store.UpdateProject(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	starred, err := s.store.ToggleProjectStar(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": starred})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type webSearchRequest struct {
	Query      string `json:"query" validate:"required,max=500"`
	MaxResults int    `json:"max_results,omitempty" validate:"gte=0,lte=50"`
}

// handleWebSearch submits an async literature-search job for a project.
// Discovered papers land in the project library as the worker finds them.
func (s *Server) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req webSearchRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), clientKey(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = 10
	}
	job, err := s.store.CreateJob(r.Context(), store.CreateJobParams{
		Type:        models.JobTypeWebSearch,
		ProjectID:   projectID,
		Payload:     map[string]any{"query": req.Query, "max_results": maxResults},
		RunAt:       time.Now(),
		MaxAttempts: s.cfg.MaxAttempts,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.queue.Enqueue(r.Context(), job.ID, job.Priority, job.NextRunAt); err != nil {
		_ = s.store.FailJob(r.Context(), job.ID, "enqueue failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	telemetry.JobsSubmitted.WithLabelValues(job.Type).Inc()

	writeJSON(w, http.StatusAccepted, job)
}
