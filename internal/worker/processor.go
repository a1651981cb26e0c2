package worker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/phuslu/log"

	"scholar-project-service/internal/config"
	"scholar-project-service/internal/events"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/notify"
	"scholar-project-service/internal/queue"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
)

// Handler executes one job. A returned summary (may be nil) is persisted on
// the job row at completion. Progress along the way goes through the Reporter.
type Handler func(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error)

// Reporter lets a handler surface intermediate progress. Every call writes
// the durable row first, then mirrors the event onto the progress bus for
// any live SSE subscriber. A progress write that does not apply (the job
// went terminal underneath, i.e. was cancelled) is reported so the handler
// can stop early.
type Reporter struct {
	store *store.Store
	bus   *queue.ProgressBus
	jobID string
}

// Status records a progress checkpoint. The returned flag is false when the
// job is no longer running and the handler should abandon its work.
func (r *Reporter) Status(ctx context.Context, step string, progressPercent int) bool {
	applied, err := r.store.UpdateProgress(ctx, r.jobID, models.StatusRunning, step, progressPercent)
	if err != nil {
		log.Warn().Err(err).Str("job_id", r.jobID).Msg("progress update failed")
		return true
	}
	if !applied {
		return false
	}
	r.publish(ctx, events.Status(r.jobID, models.StatusRunning, step, progressPercent))
	return true
}

// Issue persists one finding and streams it.
func (r *Reporter) Issue(ctx context.Context, issue *models.CitationIssue) error {
	if err := r.store.InsertIssue(ctx, issue); err != nil {
		return err
	}
	r.publish(ctx, events.Issue(r.jobID, issue))
	return nil
}

// Summary streams the result summary ahead of the completion event. The
// durable copy is written when the processor completes the job.
func (r *Reporter) Summary(ctx context.Context, summary *models.CitationSummary) {
	r.publish(ctx, events.Summary(r.jobID, summary))
}

func (r *Reporter) publish(ctx context.Context, ev events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("job_id", r.jobID).Str("kind", ev.Kind).Msg("progress publish failed")
	}
}

// Processor drives the worker execution loop.
type Processor struct {
	cfg      config.Config
	queue    *queue.RedisQueue
	store    *store.Store
	bus      *queue.ProgressBus
	notifier *notify.Client
	handlers map[string]Handler
}

func NewProcessor(cfg config.Config, q *queue.RedisQueue, st *store.Store, bus *queue.ProgressBus, notifier *notify.Client) *Processor {
	return &Processor{
		cfg:      cfg,
		queue:    q,
		store:    st,
		bus:      bus,
		notifier: notifier,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to a job type.
func (p *Processor) RegisterHandler(jobType string, handler Handler) {
	if jobType == "" || handler == nil {
		return
	}
	p.handlers[jobType] = handler
}

// Run starts the main worker loop until context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, _ = p.queue.PromoteScheduled(ctx, time.Now(), int64(p.cfg.ScheduledBatchSize))
		if reclaimed, _ := p.queue.RequeueExpired(ctx, time.Now(), 100); len(reclaimed) > 0 {
			telemetry.InFlightGauge.Sub(float64(len(reclaimed)))
			for _, id := range reclaimed {
				if job, err := p.store.GetJob(ctx, id); err == nil && !models.IsTerminal(job.Status) {
					_ = p.store.RequeueAttempt(ctx, id, job.Attempts, time.Now(), "visibility timeout expired")
				}
			}
		}
		if depth, err := p.queue.ReadyDepth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		jobID, err := p.queue.DequeueWithLease(ctx)
		if err != nil || jobID == "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.WorkerPollInterval):
			}
			continue
		}

		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			_ = p.queue.Ack(ctx, jobID)
			continue
		}
		// Cancelled while queued: drop the stale queue entry.
		if models.IsTerminal(job.Status) {
			_ = p.queue.Ack(ctx, jobID)
			continue
		}

		telemetry.InFlightGauge.Inc()
		p.process(ctx, job)
		telemetry.InFlightGauge.Dec()
	}
}

func (p *Processor) process(ctx context.Context, job models.Job) {
	rep := &Reporter{store: p.store, bus: p.bus, jobID: job.ID}
	if !rep.Status(ctx, "starting", job.ProgressPercent) {
		_ = p.queue.Ack(ctx, job.ID)
		return
	}

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.deadLetter(ctx, job, fmt.Errorf("no handler registered for type %q", job.Type))
		return
	}

	summary, err := handler(ctx, job, rep)
	if err == nil {
		_ = p.queue.Ack(ctx, job.ID)
		if cerr := p.store.CompleteJob(ctx, job.ID, "completed", summary); cerr != nil {
			// Lost the race with a cancel; the terminal row wins.
			log.Info().Str("job_id", job.ID).Msg("completion skipped, job already terminal")
			return
		}
		if summary != nil {
			rep.Summary(ctx, summary)
		}
		rep.publish(ctx, events.Complete(job.ID, "completed"))
		_ = p.store.AppendAudit(ctx, job.ID, "succeeded", "worker completed job")
		p.notifier.JobFinished(ctx, job.ID, job.Type, models.StatusDone, "")
		telemetry.JobsCompleted.Inc()
		return
	}

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		p.deadLetter(ctx, job, err)
		return
	}

	backoff := backoffWithJitter(p.cfg.BackoffInitial, p.cfg.BackoffMax, attempts)
	nextRun := time.Now().Add(backoff)
	_ = p.store.RequeueAttempt(ctx, job.ID, attempts, nextRun, err.Error())
	_ = p.queue.Ack(ctx, job.ID)
	_ = p.queue.Schedule(ctx, job.ID, job.Priority, nextRun)
	_ = p.store.AppendAudit(ctx, job.ID, "retry_scheduled", fmt.Sprintf("next_run=%s attempts=%d", nextRun.UTC().Format(time.RFC3339), attempts))
	rep.publish(ctx, events.Status(job.ID, models.StatusQueued, "retry scheduled", job.ProgressPercent))
	telemetry.JobsFailed.Inc()
	log.Warn().Err(err).Str("job_id", job.ID).Int("attempts", attempts).Msg("job attempt failed")
}

func (p *Processor) deadLetter(ctx context.Context, job models.Job, err error) {
	_ = p.queue.Ack(ctx, job.ID)
	if ferr := p.store.FailJob(ctx, job.ID, err.Error()); ferr != nil {
		return
	}
	_ = p.queue.DLQPush(ctx, job.ID)
	_ = p.store.AppendAudit(ctx, job.ID, "dead_letter", err.Error())
	if p.bus != nil {
		if perr := p.bus.Publish(ctx, events.Error(job.ID, err.Error())); perr != nil {
			log.Warn().Err(perr).Str("job_id", job.ID).Msg("error publish failed")
		}
	}
	p.notifier.JobFinished(ctx, job.ID, job.Type, models.StatusError, err.Error())
	telemetry.JobsDeadLetter.Inc()
	log.Error().Err(err).Str("job_id", job.ID).Str("type", job.Type).Msg("job dead-lettered")
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	half := wait / 2
	if half <= 0 {
		return wait
	}
	jitter := time.Duration(rand.Int63n(int64(half)))
	return half + jitter
}
