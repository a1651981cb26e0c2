package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
)

type paperRequest struct {
	Title       string   `json:"title" validate:"required,max=500"`
	Authors     []string `json:"authors,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	PDFURL      string   `json:"pdf_url,omitempty" validate:"omitempty,url"`
	Source      string   `json:"source,omitempty"`
	Year        int      `json:"year,omitempty" validate:"omitempty,gte=1800,lte=2100"`
	CitationKey string   `json:"citation_key,omitempty" validate:"omitempty,max=100"`
}

func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req paperRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err)
		return
	}

	p := models.Paper{
		ProjectID:   projectID,
		Title:       req.Title,
		Authors:     req.Authors,
		Abstract:    req.Abstract,
		DOI:         req.DOI,
		PDFURL:      req.PDFURL,
		Source:      req.Source,
		Year:        req.Year,
		CitationKey: req.CitationKey,
	}
	if err := s.store.CreatePaper(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.store.PapersByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPaper(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := s.store.TogglePaperFavorite(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (s *Server) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePaper(r.Context(), chi.URLParam(r, "paperID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
