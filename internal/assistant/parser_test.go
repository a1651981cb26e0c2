package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/models"
)

// scriptedGenerator returns canned completions in order.
type scriptedGenerator struct {
	replies []string
	errs    []error
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string) (string, error) {
	i := g.calls
	g.calls++
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	var reply string
	if i < len(g.replies) {
		reply = g.replies[i]
	}
	return reply, err
}

func TestParseCommandCreateTodo(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"```json\n{\"commandType\": \"CREATE_TODO\", \"parameters\": {\"title\": \"read the survey\", \"priority\": \"high\"}, \"response\": \"Added it.\"}\n```",
	}}
	p := NewCommandParser(gen)

	cmd := p.ParseCommand(context.Background(), "remind me to read the survey, it's urgent")

	require.Equal(t, models.CommandCreateTodo, cmd.CommandType)
	require.Equal(t, "read the survey", cmd.Parameters["title"])
	require.Equal(t, "high", cmd.Parameters["priority"])
	require.Equal(t, "Added it.", cmd.NaturalResponse)
	require.Equal(t, 1, gen.calls)
}

func TestParseCommandToleratesSurroundingProse(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Sure! Here is the parse:\n{\"commandType\": \"SEARCH_PAPERS\", \"parameters\": {\"query\": \"graph transformers\"}, \"response\": \"Searching.\"}\nHope that helps.",
	}}
	cmd := NewCommandParser(gen).ParseCommand(context.Background(), "find papers on graph transformers")

	require.Equal(t, models.CommandSearchPapers, cmd.CommandType)
	require.Equal(t, "graph transformers", cmd.Parameters["query"])
}

func TestParseCommandFallsBackOnGarbage(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"I cannot produce JSON today.",
		"Here is a plain answer instead.",
	}}
	cmd := NewCommandParser(gen).ParseCommand(context.Background(), "what is attention?")

	require.Equal(t, models.CommandGeneral, cmd.CommandType)
	require.Equal(t, "Here is a plain answer instead.", cmd.NaturalResponse)
	require.Equal(t, "what is attention?", cmd.OriginalQuery)
	require.Equal(t, 2, gen.calls)
}

func TestParseCommandFallsBackOnUnknownCommandType(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"{\"commandType\": \"LAUNCH_ROCKET\", \"parameters\": {}, \"response\": \"ok\"}",
		"Plain answer.",
	}}
	cmd := NewCommandParser(gen).ParseCommand(context.Background(), "do something odd")

	require.Equal(t, models.CommandGeneral, cmd.CommandType)
}

func TestParseCommandGeneratorDown(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := &scriptedGenerator{errs: []error{boom, boom}}
	cmd := NewCommandParser(gen).ParseCommand(context.Background(), "hello")

	require.Equal(t, models.CommandGeneral, cmd.CommandType)
	require.Contains(t, cmd.NaturalResponse, "unavailable")
}

func TestExtractJSONArray(t *testing.T) {
	raw := "```json\n[{\"name\": \"gap one\"}]\n```"
	out, err := ExtractJSONArray(raw)
	require.NoError(t, err)
	require.Equal(t, `[{"name": "gap one"}]`, out)

	_, err = ExtractJSONArray("no array here")
	require.Error(t, err)
}
