package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

type todoRequest struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Category    string     `json:"category,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty" validate:"omitempty,uuid4"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := models.Todo{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Category:    req.Category,
		ProjectID:   req.ProjectID,
		DueDate:     req.DueDate,
	}
	if err := s.store.CreateTodo(r.Context(), &t); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TodoFilter{
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		Category:  q.Get("category"),
		ProjectID: q.Get("project_id"),
	}
	if v := q.Get("due_before"); v != "" {
		due, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_before must be RFC 3339")
			return
		}
		f.DueBefore = &due
	}

	todos, err := s.store.ListTodos(r.Context(), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTodo(r.Context(), chi.URLParam(r, "todoID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := models.Todo{
		ID:          chi.URLParam(r, "todoID"),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Category:    req.Category,
		ProjectID:   req.ProjectID,
		DueDate:     req.DueDate,
	}
	if err := s.store.UpdateTodo(r.Context(), &t); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTodo(r.Context(), chi.URLParam(r, "todoID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
