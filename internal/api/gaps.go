package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

// handleAnalyzeGaps submits an async gap-analysis job for a paper. The
// paper must have extracted text for the worker to reason over.
func (s *Server) handleAnalyzeGaps(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")

	paper, err := s.store.GetPaper(r.Context(), paperID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if paper.ExtractionStatus != models.ExtractionCompleted {
		writeError(w, http.StatusConflict, "paper text has not been extracted yet")
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

	job, err := s.store.CreateJob(r.Context(), store.CreateJobParams{
		Type:        models.JobTypeGapAnalysis,
		ProjectID:   paper.ProjectID,
		PaperID:     paper.ID,
		Payload:     map[string]any{"extracted_key": paper.ExtractedKey},
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
	_ = s.store.AppendAudit(r.Context(), job.ID, "enqueued", "gap analysis for paper "+paperID)
	telemetry.JobsSubmitted.WithLabelValues(job.Type).Inc()

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListGaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := s.store.GapsByPaper(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

type updateGapStatusRequest struct {
	Status          string `json:"status" validate:"required,oneof=initial validating valid invalid modified"`
	ValidationNotes string `json:"validation_notes,omitempty" validate:"omitempty,max=2000"`
}

func (s *Server) handleUpdateGapStatus(w http.ResponseWriter, r *http.Request) {
	var req updateGapStatusRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gapID := chi.URLParam(r, "gapID")
	if err := s.store.UpdateGapStatus(r.Context(), gapID, req.Status, req.ValidationNotes); err != nil {
		writeStoreError(w, err)
		return
	}
	g, err := s.store.GetGap(r.Context(), gapID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
