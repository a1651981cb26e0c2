package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/events"
	"scholar-project-service/internal/models"
)

func newTestSession(t *testing.T) (*sseSession, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	return newSSESession(rec, rec), rec
}

func TestSSESessionFrames(t *testing.T) {
	sess, rec := newTestSession(t)

	require.NoError(t, sess.send("status", statusPayload{Status: "running", Step: "parsing", ProgressPct: 30}))
	require.NoError(t, sess.comment("keep-alive"))

	body := rec.Body.String()
	require.Contains(t, body, "event: status\n")
	require.Contains(t, body, `"step":"parsing"`)
	require.Contains(t, body, ": keep-alive\n\n")
}

type brokenWriter struct {
	http.ResponseWriter
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }
func (brokenWriter) Flush()                    {}

func TestSSESessionFailsClosed(t *testing.T) {
	w := brokenWriter{httptest.NewRecorder()}
	sess := newSSESession(w, w)

	require.Error(t, sess.send("status", statusPayload{}))

	// Every later write short-circuits without touching the writer.
	require.ErrorIs(t, sess.comment("keep-alive"), errSessionClosed)
	require.ErrorIs(t, sess.send("issue", nil), errSessionClosed)
}

func TestStreamListenerClosesOnTerminal(t *testing.T) {
	sess, rec := newTestSession(t)
	lis := &streamListener{sess: sess, done: make(chan struct{})}

	lis.OnStatus("job-1", models.StatusRunning, "checking", 60)
	select {
	case <-lis.done:
		t.Fatal("done closed before terminal event")
	default:
	}

	lis.OnComplete("job-1")
	select {
	case <-lis.done:
	default:
		t.Fatal("done not closed after complete")
	}

	body := rec.Body.String()
	require.Contains(t, body, "event: status\n")
	require.Contains(t, body, "event: complete\n")
}

func TestStreamListenerClosesOnSendFailure(t *testing.T) {
	w := brokenWriter{httptest.NewRecorder()}
	lis := &streamListener{sess: newSSESession(w, w), done: make(chan struct{})}

	lis.OnStatus("job-1", models.StatusRunning, "checking", 10)
	select {
	case <-lis.done:
	default:
		t.Fatal("done not closed after write failure")
	}
}

func TestReplayTerminalDone(t *testing.T) {
	sess, rec := newTestSession(t)

	replayTerminal(sess, models.Job{
		ID:              "job-1",
		Status:          models.StatusDone,
		CurrentStep:     "completed",
		ProgressPercent: 100,
		Summary:         &models.CitationSummary{TotalCitations: 12, TotalIssues: 2},
	})

	body := rec.Body.String()
	require.Contains(t, body, "event: status\n")
	require.Contains(t, body, "event: summary\n")
	require.Contains(t, body, `"total_citations":12`)
	require.Contains(t, body, "event: complete\n")
	require.NotContains(t, body, "event: error\n")

	// Exactly one terminal event.
	require.Equal(t, 1, strings.Count(body, "event: complete\n"))
}

func TestReplayTerminalError(t *testing.T) {
	sess, rec := newTestSession(t)
	msg := "cancelled by user"

	replayTerminal(sess, models.Job{
		ID:        "job-1",
		Status:    models.StatusError,
		LastError: &msg,
	})

	body := rec.Body.String()
	require.Contains(t, body, "event: error\n")
	require.Contains(t, body, `"message":"cancelled by user"`)
	require.NotContains(t, body, "event: complete\n")
	require.NotContains(t, body, "event: summary\n")
}

// stubJobs serves scripted job rows in order, repeating the last one. The
// hook runs the first time the final row is served, before it is returned.
type stubJobs struct {
	mu         sync.Mutex
	jobs       []models.Job
	calls      int
	beforeLast func()
}

func (s *stubJobs) GetJob(ctx context.Context, id string) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	i := s.calls - 1
	if i >= len(s.jobs) {
		i = len(s.jobs) - 1
	}
	if i == len(s.jobs)-1 && s.beforeLast != nil {
		hook := s.beforeLast
		s.beforeLast = nil
		hook()
	}
	return s.jobs[i], nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStreamJobUnregistersOnDisconnect(t *testing.T) {
	reg := events.NewRegistry()
	jobs := &stubJobs{jobs: []models.Job{{ID: "job-1", Status: models.StatusRunning}}}
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/events", nil).WithContext(ctx)

	finished := make(chan struct{})
	go func() {
		streamJob(rec, req, "job-1", jobs, reg, time.Minute)
		close(finished)
	}()

	waitFor(t, func() bool { return reg.Len() == 1 })
	cancel()
	<-finished
	require.Equal(t, 0, reg.Len())
}

// flakyWriter accepts a fixed number of writes, then fails.
type flakyWriter struct {
	*httptest.ResponseRecorder
	mu    sync.Mutex
	allow int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.allow <= 0 {
		return 0, errors.New("client gone")
	}
	w.allow--
	return w.ResponseRecorder.Write(p)
}

func TestStreamJobUnregistersOnSendFailure(t *testing.T) {
	reg := events.NewRegistry()
	jobs := &stubJobs{jobs: []models.Job{{ID: "job-2", Status: models.StatusRunning}}}
	w := &flakyWriter{ResponseRecorder: httptest.NewRecorder(), allow: 1}
	req := httptest.NewRequest(http.MethodGet, "/jobs/job-2/events", nil)

	// Initial status write succeeds, the first keep-alive write fails.
	streamJob(w, req, "job-2", jobs, reg, 10*time.Millisecond)

	require.Equal(t, 0, reg.Len())
}

func TestStreamJobUnregistersOnTerminalEvent(t *testing.T) {
	reg := events.NewRegistry()
	jobs := &stubJobs{jobs: []models.Job{{ID: "job-3", Status: models.StatusRunning}}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/job-3/events", nil)

	finished := make(chan struct{})
	go func() {
		streamJob(rec, req, "job-3", jobs, reg, time.Minute)
		close(finished)
	}()

	waitFor(t, func() bool { return reg.Len() == 1 })
	reg.Dispatch(events.Complete("job-3", "completed"))
	<-finished

	require.Equal(t, 0, reg.Len())
	require.Equal(t, 1, strings.Count(rec.Body.String(), "event: complete\n"))
}

func TestStreamJobSingleTerminalOnLateFinish(t *testing.T) {
	reg := events.NewRegistry()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/job-4/events", nil)

	finished := models.Job{ID: "job-4", Status: models.StatusDone, CurrentStep: "completed", ProgressPercent: 100}
	jobs := &stubJobs{jobs: []models.Job{{ID: "job-4", Status: models.StatusRunning}, finished}}
	// The worker finishes right after registration: the live complete event
	// reaches the listener before the handler re-reads the job row. The
	// re-check must not replay a second terminal event.
	jobs.beforeLast = func() { reg.Dispatch(events.Complete("job-4", "completed")) }

	streamJob(rec, req, "job-4", jobs, reg, time.Minute)

	require.Equal(t, 0, reg.Len())
	require.Equal(t, 1, strings.Count(rec.Body.String(), "event: complete\n"))
}
