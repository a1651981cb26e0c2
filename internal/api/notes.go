package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

type noteRequest struct {
	Title    string   `json:"title" validate:"required,max=300"`
	Content  string   `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req noteRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	n := models.Note{
		ProjectID: projectID,
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		Favorite:  req.Favorite,
	}
	if err := s.store.CreateNote(r.Context(), &n); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.NotesByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.GetNote(r.Context(), chi.URLParam(r, "noteID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n := models.Note{
		ID:       chi.URLParam(r, "noteID"),
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		Favorite: req.Favorite,
	}
	if err := s.store.UpdateNote(r.Context(), &n); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(r.Context(), chi.URLParam(r, "noteID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attachImageRequest struct {
	Filename    string `json:"filename" validate:"required,max=300"`
	SourceURL   string `json:"source_url" validate:"required,url"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty" validate:"gte=0"`
}

// handleAttachNoteImage records an image against a note and queues
// asynchronous thumbnail generation for it.
func (s *Server) handleAttachNoteImage(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	var req attachImageRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := s.store.GetNote(r.Context(), noteID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	img := models.NoteImage{
		NoteID:      noteID,
		ProjectID:   note.ProjectID,
		Filename:    req.Filename,
		SourceURL:   req.SourceURL,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	}
	if err := s.store.CreateNoteImage(r.Context(), &img); err != nil {
		writeStoreError(w, err)
		return
	}

	job, err := s.store.CreateJob(r.Context(), store.CreateJobParams{
		Type:        models.JobTypeThumbnail,
		Priority:    "low",
		ProjectID:   note.ProjectID,
		Payload:     map[string]any{"image_id": img.ID},
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

	writeJSON(w, http.StatusAccepted, map[string]any{"image": img, "job_id": job.ID})
}
