package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phuslu/log"

	"scholar-project-service/internal/dispatch"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

// extractionStore is the slice of the store the extraction trigger needs.
type extractionStore interface {
	GetPaper(ctx context.Context, id string) (models.Paper, error)
	CreateJob(ctx context.Context, p store.CreateJobParams) (models.Job, error)
	FailJob(ctx context.Context, id, message string) error
	SetExtractionStatus(ctx context.Context, id, status, extractedKey string) error
	AppendAudit(ctx context.Context, jobID, event, detail string) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, jobID, priority string, runAt time.Time) error
}

// extractionTrigger adapts paper text extraction to the batch dispatcher.
type extractionTrigger struct {
	store       extractionStore
	queue       jobEnqueuer
	maxAttempts int
}

func (s *Server) newExtractionTrigger() extractionTrigger {
	return extractionTrigger{store: s.store, queue: s.queue, maxAttempts: s.cfg.MaxAttempts}
}

func (t extractionTrigger) Done(ctx context.Context, paperID string) (bool, error) {
	paper, err := t.store.GetPaper(ctx, paperID)
	if err != nil {
		return false, err
	}
	return paper.ExtractionStatus == models.ExtractionCompleted, nil
}

func (t extractionTrigger) InFlight(ctx context.Context, paperID string) (string, bool, error) {
	paper, err := t.store.GetPaper(ctx, paperID)
	if err != nil {
		return "", false, err
	}
	switch paper.ExtractionStatus {
	case models.ExtractionPending, models.ExtractionProcessing:
		return paper.ExtractionStatus, true, nil
	}
	return paper.ExtractionStatus, false, nil
}

func (t extractionTrigger) Start(ctx context.Context, paperID string) (string, string, error) {
	paper, err := t.store.GetPaper(ctx, paperID)
	if err != nil {
		return "", "", err
	}

	job, err := t.store.CreateJob(ctx, store.CreateJobParams{
		Type:        models.JobTypeExtraction,
		ProjectID:   paper.ProjectID,
		PaperID:     paper.ID,
		Payload:     map[string]any{"pdf_url": paper.PDFURL},
		RunAt:       time.Now(),
		MaxAttempts: t.maxAttempts,
	})
	if err != nil {
		return "", "", err
	}
	if err := t.queue.Enqueue(ctx, job.ID, job.Priority, job.NextRunAt); err != nil {
		_ = t.store.FailJob(ctx, job.ID, "enqueue failed: "+err.Error())
		return "", "", err
	}
	// The job is already queued and will run; the status write is best
	// effort, the worker sets processing when it picks the job up.
	if err := t.store.SetExtractionStatus(ctx, paperID, models.ExtractionPending, ""); err != nil {
		log.Warn().Err(err).Str("paper_id", paperID).Msg("extraction status update failed")
	}
	_ = t.store.AppendAudit(ctx, job.ID, "enqueued", "extraction for paper "+paperID)
	telemetry.JobsSubmitted.WithLabelValues(job.Type).Inc()
	return job.ID, models.ExtractionPending, nil
}

type batchExtractionRequest struct {
	PaperIDs  []string `json:"paper_ids,omitempty" validate:"omitempty,dive,uuid4"`
	ProjectID string   `json:"project_id,omitempty" validate:"omitempty,uuid4"`
}

// handleBatchExtraction triggers extraction across a set of papers. The
// response is always 200 with per-paper outcomes; papers that are already
// extracted or already in flight are skipped, and one paper's failure never
// aborts the rest.
func (s *Server) handleBatchExtraction(w http.ResponseWriter, r *http.Request) {
	var req batchExtractionRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := req.PaperIDs
	if len(ids) == 0 {
		if req.ProjectID == "" {
			writeError(w, http.StatusBadRequest, "paper_ids or project_id required")
			return
		}
		papers, err := s.store.PapersByProject(r.Context(), req.ProjectID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		for _, p := range papers {
			ids = append(ids, p.ID)
		}
	}

	res := dispatch.Run(r.Context(), ids, s.newExtractionTrigger())
	writeJSON(w, http.StatusOK, res)
}

// handleTriggerExtraction starts extraction for a single paper, with the
// same skip semantics as the batch endpoint.
func (s *Server) handleTriggerExtraction(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")
	if _, err := s.store.GetPaper(r.Context(), paperID); err != nil {
		writeStoreError(w, err)
		return
	}

	res := dispatch.Run(r.Context(), []string{paperID}, s.newExtractionTrigger())
	writeJSON(w, http.StatusOK, res.Items[0])
}
