package api

import (
	"net/http"

	"github.com/phuslu/log"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required,max=2000"`
	ProjectID string `json:"project_id,omitempty" validate:"omitempty,uuid4"`
}

type chatResponse struct {
	CommandType string         `json:"command_type"`
	Response    string         `json:"response"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Result      any            `json:"result,omitempty"`
}

// handleChat runs a natural-language message through the command parser and
// executes the resolved command. Unrecognized messages come back as a plain
// answer with no side effects.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	var req chatRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmd := s.parser.ParseCommand(r.Context(), req.Message)
	resp := chatResponse{
		CommandType: cmd.CommandType,
		Response:    cmd.NaturalResponse,
		Parameters:  cmd.Parameters,
	}

	switch cmd.CommandType {
	case models.CommandCreateTodo:
		todo, err := s.createTodoFromCommand(r, cmd, req.ProjectID)
		if err != nil {
			log.Warn().Err(err).Msg("chat todo creation failed")
			resp.Response = "I understood the task but could not create it: " + err.Error()
			break
		}
		resp.Result = todo
	case models.CommandSearchTodo, models.CommandSummarizeTodos:
		f := store.TodoFilter{ProjectID: req.ProjectID}
		if v, ok := cmd.Parameters["status"].(string); ok {
			f.Status = v
		}
		if v, ok := cmd.Parameters["priority"].(string); ok {
			f.Priority = v
		}
		todos, err := s.store.ListTodos(r.Context(), f)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.Result = todos
	case models.CommandSearchPapers:
		if req.ProjectID == "" {
			break
		}
		papers, err := s.store.PapersByProject(r.Context(), req.ProjectID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.Result = papers
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createTodoFromCommand(r *http.Request, cmd models.ParsedCommand, projectID string) (models.Todo, error) {
	t := models.Todo{Title: cmd.OriginalQuery}
	if v, ok := cmd.Parameters["title"].(string); ok && v != "" {
		t.Title = v
	}
	if v, ok := cmd.Parameters["description"].(string); ok {
		t.Description = v
	}
	if v, ok := cmd.Parameters["priority"].(string); ok {
		t.Priority = v
	}
	if v, ok := cmd.Parameters["category"].(string); ok {
		t.Category = v
	}
	if projectID != "" {
		t.ProjectID = &projectID
	}
	if err := s.store.CreateTodo(r.Context(), &t); err != nil {
		return models.Todo{}, err
	}
	return t, nil
}
