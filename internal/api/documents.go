package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
)

type createDocumentRequest struct {
	Title        string `json:"title" validate:"required,max=300"`
	Content      string `json:"content,omitempty"`
	DocumentType string `json:"document_type,omitempty" validate:"omitempty,oneof=article report thesis notes"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req createDocumentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	d := models.Document{
		ProjectID:    projectID,
		Title:        req.Title,
		Content:      req.Content,
		DocumentType: req.DocumentType,
	}
	if err := s.store.CreateDocument(r.Context(), &d); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.DocumentsByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type saveDocumentRequest struct {
	Title         string `json:"title" validate:"required,max=300"`
	Content       string `json:"content"`
	CommitMessage string `json:"commit_message,omitempty" validate:"omitempty,max=500"`
}

// handleSaveDocument updates a document and snapshots the new content as
// the next version.
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	var req saveDocumentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := models.Document{
		ID:      chi.URLParam(r, "documentID"),
		Title:   req.Title,
		Content: req.Content,
	}
	version, err := s.store.SaveDocument(r.Context(), &d, req.CommitMessage)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": d, "version": version})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDocument(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.store.DocumentVersions(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// handleRestoreVersion copies an old version's content back into the
// document, which records it as a fresh version on top of the history.
func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || versionNumber < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	d, err := s.store.RestoreDocumentVersion(r.Context(), chi.URLParam(r, "documentID"), versionNumber)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
