package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"scholar-project-service/internal/models"
)

var knownCommands = map[string]bool{
	models.CommandCreateTodo:     true,
	models.CommandUpdateTodo:     true,
	models.CommandDeleteTodo:     true,
	models.CommandSearchTodo:     true,
	models.CommandSummarizeTodos: true,
	models.CommandSearchPapers:   true,
	models.CommandGeneral:        true,
}

// CommandParser turns natural-language chat input into a typed command by
// prompting the generator for a JSON verdict. Anything that fails to parse
// degrades to a general-question answer rather than an error.
type CommandParser struct {
	gen Generator
}

// NewCommandParser builds a parser on top of a generator.
func NewCommandParser(gen Generator) *CommandParser {
	return &CommandParser{gen: gen}
}

// ParseCommand resolves user input into a ParsedCommand.
func (p *CommandParser) ParseCommand(ctx context.Context, userInput string) models.ParsedCommand {
	raw, err := p.gen.Generate(ctx, buildParsingPrompt(userInput))
	if err == nil {
		if cmd, perr := decodeCommand(raw, userInput); perr == nil {
			return cmd
		} else {
			log.Warn().Err(perr).Str("input", userInput).Msg("command parse failed, falling back to general answer")
		}
	} else {
		log.Warn().Err(err).Msg("assistant unavailable for command parsing")
	}

	// Fallback: answer the input as a plain question.
	answer, err := p.gen.Generate(ctx, userInput)
	if err != nil {
		answer = "Sorry, the assistant is unavailable right now."
	}
	return models.ParsedCommand{
		CommandType:     models.CommandGeneral,
		OriginalQuery:   userInput,
		NaturalResponse: answer,
	}
}

type commandVerdict struct {
	CommandType string         `json:"commandType"`
	Parameters  map[string]any `json:"parameters"`
	Response    string         `json:"response"`
}

func decodeCommand(raw, userInput string) (models.ParsedCommand, error) {
	jsonText, err := extractJSON(raw)
	if err != nil {
		return models.ParsedCommand{}, err
	}
	var v commandVerdict
	if err := json.Unmarshal([]byte(jsonText), &v); err != nil {
		return models.ParsedCommand{}, fmt.Errorf("unmarshal verdict: %w", err)
	}
	if !knownCommands[v.CommandType] {
		return models.ParsedCommand{}, fmt.Errorf("unknown command type %q", v.CommandType)
	}
	if v.Parameters == nil {
		v.Parameters = map[string]any{}
	}
	if v.Response == "" {
		v.Response = "I'll help you with that."
	}
	return models.ParsedCommand{
		CommandType:     v.CommandType,
		Parameters:      v.Parameters,
		OriginalQuery:   userInput,
		NaturalResponse: v.Response,
	}, nil
}

// extractJSON pulls the first JSON object out of a completion, tolerating
// fenced code blocks and surrounding prose.
func extractJSON(raw string) (string, error) {
	text := stripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in completion")
	}
	return text[start : end+1], nil
}

// ExtractJSONArray pulls the first JSON array out of a completion, with the
// same tolerance for fences and prose as extractJSON.
func ExtractJSONArray(raw string) (string, error) {
	text := stripFences(raw)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON array in completion")
	}
	return text[start : end+1], nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return text
}

func buildParsingPrompt(userInput string) string {
	return fmt.Sprintf(`You are a command parser for a research assistant. Analyze the following user input and determine:
1. The command type
2. Extract relevant parameters
3. Generate a natural language response

Available command types:
- CREATE_TODO: Create a new todo item
- UPDATE_TODO: Update an existing todo
- DELETE_TODO: Delete a todo
- SEARCH_TODO: Search for todos
- SUMMARIZE_TODOS: Summarize todos (by date, status, etc.)
- SEARCH_PAPERS: Search academic papers
- GENERAL_QUESTION: General questions

User input: %q

Respond ONLY with a JSON object in this exact format:
{
    "commandType": "COMMAND_TYPE",
    "parameters": {
        "title": "extracted title if applicable",
        "status": "extracted status if applicable",
        "priority": "extracted priority if applicable",
        "dueDate": "extracted date if applicable",
        "query": "extracted search query if applicable"
    },
    "response": "a short natural language acknowledgement"
}`, userInput)
}
