package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phuslu/log"

	"scholar-project-service/internal/events"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/telemetry"
)

var errSessionClosed = errors.New("sse session closed")

// sseSession serializes writes to one event-stream connection. The keep-alive
// loop and the progress-bus dispatcher write concurrently; the first write
// failure marks the session dead and every later write short-circuits.
type sseSession struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	failed  bool
}

func newSSESession(w http.ResponseWriter, flusher http.Flusher) *sseSession {
	return &sseSession{w: w, flusher: flusher}
}

// send writes one named, data-bearing event.
func (s *sseSession) send(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errSessionClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		s.failed = true
		return err
	}
	s.flusher.Flush()
	telemetry.SSEEventsSent.WithLabelValues(kind).Inc()
	return nil
}

// comment writes a keep-alive comment frame.
func (s *sseSession) comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errSessionClosed
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		s.failed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

type statusPayload struct {
	Status      string `json:"status"`
	Step        string `json:"step"`
	ProgressPct int    `json:"progress_pct"`
}

// streamListener forwards registry callbacks onto the SSE session. A
// terminal callback, or any failed write, closes done exactly once which
// unblocks the handler's wait loop.
type streamListener struct {
	sess *sseSession
	done chan struct{}
	once sync.Once
}

func (l *streamListener) finish() {
	l.once.Do(func() { close(l.done) })
}

func (l *streamListener) OnStatus(jobID, status, step string, progressPercent int) {
	if err := l.sess.send("status", statusPayload{Status: status, Step: step, ProgressPct: progressPercent}); err != nil {
		l.finish()
	}
}

func (l *streamListener) OnIssue(jobID string, issue *models.CitationIssue) {
	if err := l.sess.send("issue", map[string]any{"issue": issue}); err != nil {
		l.finish()
	}
}

func (l *streamListener) OnSummary(jobID string, summary *models.CitationSummary) {
	if err := l.sess.send("summary", map[string]any{"summary": summary}); err != nil {
		l.finish()
	}
}

func (l *streamListener) OnError(jobID, message string) {
	_ = l.sess.send("error", map[string]string{"message": message})
	l.finish()
}

func (l *streamListener) OnComplete(jobID string) {
	_ = l.sess.send("complete", statusPayload{Status: models.StatusDone, Step: "completed", ProgressPct: 100})
	l.finish()
}

// jobReader is the slice of the store the stream handler needs.
type jobReader interface {
	GetJob(ctx context.Context, id string) (models.Job, error)
}

// handleStreamJob streams a job's progress over Server-Sent Events.
func (s *Server) handleStreamJob(w http.ResponseWriter, r *http.Request) {
	streamJob(w, r, chi.URLParam(r, "jobID"), s.store, s.registry, s.cfg.KeepAliveInterval)
}

// streamJob runs one SSE session for a job.
//
// Already-terminal jobs get a replay of the final state and an immediate
// close, with no listener registration. Live jobs get an initial status
// event, a registration in the listener registry, periodic keep-alive
// comments, and event forwarding until a terminal event, a client
// disconnect, or a failed write ends the session. Every exit path releases
// the registration (token-conditionally) and the keep-alive ticker.
func streamJob(w http.ResponseWriter, r *http.Request, jobID string, jobs jobReader, registry *events.Registry, keepAliveInterval time.Duration) {
	job, err := jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	sess := newSSESession(w, flusher)
	telemetry.SSESessions.Inc()
	defer telemetry.SSESessions.Dec()

	if models.IsTerminal(job.Status) {
		replayTerminal(sess, job)
		return
	}

	if err := sess.send("status", statusPayload{Status: "started", Step: "initializing", ProgressPct: 0}); err != nil {
		return
	}

	lis := &streamListener{sess: sess, done: make(chan struct{})}
	token := registry.Register(jobID, lis)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer func() {
		keepAlive.Stop()
		registry.Unregister(jobID, token)
	}()

	// The job may have finished between the initial read and the
	// registration. Unregister first so the dispatcher cannot race the
	// replay, then replay only if the live terminal event never arrived;
	// the subscriber must see exactly one terminal event.
	if job, err := jobs.GetJob(r.Context(), jobID); err == nil && models.IsTerminal(job.Status) {
		registry.Unregister(jobID, token)
		select {
		case <-lis.done:
		default:
			replayTerminal(sess, job)
		}
		return
	}

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("job_id", jobID).Msg("sse client disconnected")
			return
		case <-lis.done:
			return
		case <-keepAlive.C:
			if err := sess.comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

// replayTerminal emits the final state of a finished job: status, summary
// when present, then exactly one terminal event.
func replayTerminal(sess *sseSession, job models.Job) {
	_ = sess.send("status", statusPayload{Status: job.Status, Step: job.CurrentStep, ProgressPct: job.ProgressPercent})
	if job.Summary != nil {
		_ = sess.send("summary", map[string]any{"summary": job.Summary})
	}
	if job.Status == models.StatusDone {
		_ = sess.send("complete", statusPayload{Status: models.StatusDone, Step: "completed", ProgressPct: 100})
		return
	}
	msg := "job failed"
	if job.LastError != nil {
		msg = *job.LastError
	}
	_ = sess.send("error", map[string]string{"message": msg})
}
