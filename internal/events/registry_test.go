package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/models"
)

type recordingListener struct {
	statuses  []string
	issues    []*models.CitationIssue
	summaries []*models.CitationSummary
	errors    []string
	completes int
}

func (l *recordingListener) OnStatus(jobID, status, step string, progressPercent int) {
	l.statuses = append(l.statuses, step)
}
func (l *recordingListener) OnIssue(jobID string, issue *models.CitationIssue) {
	l.issues = append(l.issues, issue)
}
func (l *recordingListener) OnSummary(jobID string, summary *models.CitationSummary) {
	l.summaries = append(l.summaries, summary)
}
func (l *recordingListener) OnError(jobID, message string) {
	l.errors = append(l.errors, message)
}
func (l *recordingListener) OnComplete(jobID string) {
	l.completes++
}

func TestRegistryLastRegisterWins(t *testing.T) {
	r := NewRegistry()
	first := &recordingListener{}
	second := &recordingListener{}

	r.Register("job-1", first)
	r.Register("job-1", second)
	require.Equal(t, 1, r.Len())

	r.Dispatch(Status("job-1", models.StatusRunning, "working", 50))
	require.Empty(t, first.statuses)
	require.Equal(t, []string{"working"}, second.statuses)
}

func TestRegistryUnregisterIsTokenConditional(t *testing.T) {
	r := NewRegistry()
	first := &recordingListener{}
	second := &recordingListener{}

	staleToken := r.Register("job-1", first)
	r.Register("job-1", second)

	// The superseded session tearing down must not evict the replacement.
	r.Unregister("job-1", staleToken)
	require.Equal(t, 1, r.Len())

	r.Dispatch(Status("job-1", models.StatusRunning, "still here", 10))
	require.Equal(t, []string{"still here"}, second.statuses)
}

func TestRegistryUnregisterUnknownJobIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("missing", 42)
	require.Equal(t, 0, r.Len())
}

func TestRegistryTerminalEventRemovesRegistration(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Register("job-1", l)

	r.Dispatch(Complete("job-1", "completed"))
	require.Equal(t, 1, l.completes)
	require.Equal(t, 0, r.Len())

	// Anything after a terminal event goes nowhere.
	r.Dispatch(Status("job-1", models.StatusRunning, "late", 99))
	r.Dispatch(Error("job-1", "late failure"))
	require.Empty(t, l.statuses)
	require.Empty(t, l.errors)
	require.Equal(t, 1, l.completes)
}

func TestRegistryErrorIsTerminalToo(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Register("job-1", l)

	r.Dispatch(Error("job-1", "boom"))
	require.Equal(t, []string{"boom"}, l.errors)
	require.Equal(t, 0, r.Len())

	r.Dispatch(Complete("job-1", "completed"))
	require.Equal(t, 0, l.completes)
}

func TestRegistryDispatchWithoutListenerIsDropped(t *testing.T) {
	r := NewRegistry()
	r.Dispatch(Status("nobody", models.StatusRunning, "ignored", 1))
	require.Equal(t, 0, r.Len())
}

func TestRegistryDropIgnoresToken(t *testing.T) {
	r := NewRegistry()
	r.Register("job-1", &recordingListener{})
	r.Drop("job-1")
	require.Equal(t, 0, r.Len())
}

func TestRegistryRoutesPerJob(t *testing.T) {
	r := NewRegistry()
	a := &recordingListener{}
	b := &recordingListener{}
	r.Register("job-a", a)
	r.Register("job-b", b)

	r.Dispatch(Issue("job-a", &models.CitationIssue{IssueType: models.IssueUnknownKey}))
	r.Dispatch(Summary("job-b", &models.CitationSummary{TotalIssues: 3}))

	require.Len(t, a.issues, 1)
	require.Empty(t, a.summaries)
	require.Len(t, b.summaries, 1)
	require.Empty(t, b.issues)
}
