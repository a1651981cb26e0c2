package models

// Command types the assistant can resolve from natural language.
const (
	CommandCreateTodo     = "CREATE_TODO"
	CommandUpdateTodo     = "UPDATE_TODO"
	CommandDeleteTodo     = "DELETE_TODO"
	CommandSearchTodo     = "SEARCH_TODO"
	CommandSummarizeTodos = "SUMMARIZE_TODOS"
	CommandSearchPapers   = "SEARCH_PAPERS"
	CommandGeneral        = "GENERAL_QUESTION"
)

// ParsedCommand is the structured result of running a chat message through
// the command parser.
type ParsedCommand struct {
	CommandType     string         `json:"command_type"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	OriginalQuery   string         `json:"original_query"`
	NaturalResponse string         `json:"natural_response"`
}
