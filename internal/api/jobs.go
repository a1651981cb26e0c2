package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phuslu/log"

	"scholar-project-service/internal/events"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

type startCitationCheckRequest struct {
	ProjectID        string   `json:"project_id" validate:"required,uuid4"`
	DocumentID       string   `json:"document_id" validate:"required,uuid4"`
	SelectedPaperIDs []string `json:"selected_paper_ids,omitempty" validate:"omitempty,dive,uuid4"`
	ContentHash      string   `json:"content_hash,omitempty"`
	ForceRecheck     bool     `json:"force_recheck,omitempty"`
	Priority         string   `json:"priority,omitempty" validate:"omitempty,oneof=high default low"`
}

// handleStartCitationCheck submits a citation-check job for a document.
// Unless force_recheck is set, an already queued or running check for the
// same document is returned instead of starting a duplicate.
func (s *Server) handleStartCitationCheck(w http.ResponseWriter, r *http.Request) {
	var req startCitationCheckRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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

	if _, err := s.store.GetDocument(r.Context(), req.DocumentID); err != nil {
		writeStoreError(w, err)
		return
	}

	if !req.ForceRecheck {
		if latest, err := s.store.LatestJobForDocument(r.Context(), req.DocumentID, models.JobTypeCitationCheck); err == nil && !models.IsTerminal(latest.Status) {
			writeJSON(w, http.StatusOK, latest)
			return
		}
	}

	payload := map[string]any{}
	if len(req.SelectedPaperIDs) > 0 {
		payload["selected_paper_ids"] = req.SelectedPaperIDs
	}
	if req.ContentHash != "" {
		payload["content_hash"] = req.ContentHash
	}

	job, err := s.store.CreateJob(r.Context(), store.CreateJobParams{
		Type:        models.JobTypeCitationCheck,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
		DocumentID:  req.DocumentID,
		Payload:     payload,
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
	_ = s.store.AppendAudit(r.Context(), job.ID, "enqueued", "citation check for document "+req.DocumentID)
	telemetry.JobsSubmitted.WithLabelValues(job.Type).Inc()

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob cancels a queued or running job. The queue entry is
// removed, the durable row becomes terminal, and any live subscriber gets
// an error event before its registration is dropped.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if models.IsTerminal(job.Status) {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}

	if err := s.queue.Cancel(r.Context(), jobID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel queue item")
		return
	}
	if err := s.store.FailJob(r.Context(), jobID, "cancelled by user"); err != nil {
		writeStoreError(w, err)
		return
	}
	_ = s.store.AppendAudit(r.Context(), jobID, "cancelled", "cancel requested via API")

	// Surface the terminal event to a local subscriber directly, then on the
	// bus for subscribers attached to other API instances. The registry
	// drops the registration on the terminal dispatch, so a duplicate
	// arriving via the bus finds no listener.
	ev := events.Error(jobID, "cancelled by user")
	s.registry.Dispatch(ev)
	if s.bus != nil {
		if err := s.bus.Publish(r.Context(), ev); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("publish cancel event")
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleLatestCitationCheck(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.LatestJobForDocument(r.Context(), chi.URLParam(r, "documentID"), models.JobTypeCitationCheck)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCitationChecksByProject(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.JobsByProject(r.Context(), chi.URLParam(r, "projectID"), models.JobTypeCitationCheck)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type updateIssueRequest struct {
	Resolved *bool `json:"resolved" validate:"required"`
}

// handleUpdateIssue toggles the resolved flag on a citation issue. Issues
// stay mutable after their job has finished.
func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req updateIssueRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetIssueResolved(r.Context(), chi.URLParam(r, "issueID"), *req.Resolved); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"resolved": *req.Resolved})
}
