package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"scholar-project-service/internal/assistant"
	"scholar-project-service/internal/config"
	"scholar-project-service/internal/events"
	"scholar-project-service/internal/notify"
	"scholar-project-service/internal/queue"
	"scholar-project-service/internal/ratelimit"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

// Server wires the HTTP handlers for the project service.
type Server struct {
	cfg      config.Config
	store    *store.Store
	queue    *queue.RedisQueue
	bus      *queue.ProgressBus
	registry *events.Registry
	limiter  *ratelimit.TokenBucket
	parser   *assistant.CommandParser
	notifier *notify.Client
	validate *validator.Validate
}

// New constructs the API server. limiter and parser may be nil (disabled).
func New(cfg config.Config, st *store.Store, q *queue.RedisQueue, bus *queue.ProgressBus, registry *events.Registry, limiter *ratelimit.TokenBucket, parser *assistant.CommandParser, notifier *notify.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		queue:    q,
		bus:      bus,
		registry: registry,
		limiter:  limiter,
		parser:   parser,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Registry exposes the listener registry, used by the progress-bus consumer.
func (s *Server) Registry() *events.Registry {
	return s.registry
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Generic job operations.
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/jobs/{jobID}/events", s.handleStreamJob)
		r.Delete("/jobs/{jobID}", s.handleCancelJob)
		r.Get("/dlq", s.handleDLQ)

		// Citation checks.
		r.Post("/citations/jobs", s.handleStartCitationCheck)
		r.Get("/citations/documents/{documentID}", s.handleLatestCitationCheck)
		r.Get("/citations/projects/{projectID}", s.handleCitationChecksByProject)
		r.Put("/citations/issues/{issueID}", s.handleUpdateIssue)

		// Extraction.
		r.Post("/extraction/batch", s.handleBatchExtraction)
		r.Post("/papers/{paperID}/extract", s.handleTriggerExtraction)

		// Projects.
		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{projectID}", s.handleGetProject)
		r.Put("/projects/{projectID}", s.handleUpdateProject)
		r.Post("/projects/{projectID}/star", s.handleToggleStar)
		r.Delete("/projects/{projectID}", s.handleDeleteProject)
		r.Post("/projects/{projectID}/search", s.handleWebSearch)

		// Papers.
		r.Post("/projects/{projectID}/papers", s.handleCreatePaper)
		r.Get("/projects/{projectID}/papers", s.handleListPapers)
		r.Get("/papers/{paperID}", s.handleGetPaper)
		r.Post("/papers/{paperID}/favorite", s.handleToggleFavorite)
		r.Delete("/papers/{paperID}", s.handleDeletePaper)

		// Research gaps.
		r.Post("/papers/{paperID}/gaps/analyze", s.handleAnalyzeGaps)
		r.Get("/papers/{paperID}/gaps", s.handleListGaps)
		r.Put("/gaps/{gapID}/status", s.handleUpdateGapStatus)

		// Todos.
		r.Post("/todos", s.handleCreateTodo)
		r.Get("/todos", s.handleListTodos)
		r.Get("/todos/{todoID}", s.handleGetTodo)
		r.Put("/todos/{todoID}", s.handleUpdateTodo)
		r.Delete("/todos/{todoID}", s.handleDeleteTodo)

		// Notes.
		r.Post("/projects/{projectID}/notes", s.handleCreateNote)
		r.Get("/projects/{projectID}/notes", s.handleListNotes)
		r.Get("/notes/{noteID}", s.handleGetNote)
		r.Put("/notes/{noteID}", s.handleUpdateNote)
		r.Delete("/notes/{noteID}", s.handleDeleteNote)
		r.Post("/notes/{noteID}/images", s.handleAttachNoteImage)

		// Documents.
		r.Post("/projects/{projectID}/documents", s.handleCreateDocument)
		r.Get("/projects/{projectID}/documents", s.handleListDocuments)
		r.Get("/documents/{documentID}", s.handleGetDocument)
		r.Put("/documents/{documentID}", s.handleSaveDocument)
		r.Delete("/documents/{documentID}", s.handleDeleteDocument)
		r.Get("/documents/{documentID}/versions", s.handleListVersions)
		r.Post("/documents/{documentID}/versions/{version}/restore", s.handleRestoreVersion)

		// Chat assistant.
		r.Post("/chat", s.handleChat)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// decode unmarshals and validates a JSON request body.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeStoreError maps store errors onto HTTP codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrTerminal):
		writeError(w, http.StatusConflict, "job already finished")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func clientKey(r *http.Request) string {
	if v := r.Header.Get("X-Client-ID"); v != "" {
		return v
	}
	return r.RemoteAddr
}

// handleDLQ returns the dead-letter queue contents (IDs only).
func (s *Server) handleDLQ(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.DLQPeek(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dlq")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
