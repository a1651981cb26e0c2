package events

import (
	"sync"

	"scholar-project-service/internal/models"
)

// Listener receives live progress callbacks for one job. Calls for a given
// job arrive in the order the worker emitted them; after OnError or
// OnComplete no further calls are made.
type Listener interface {
	OnStatus(jobID, status, step string, progressPercent int)
	OnIssue(jobID string, issue *models.CitationIssue)
	OnSummary(jobID string, summary *models.CitationSummary)
	OnError(jobID, message string)
	OnComplete(jobID string)
}

type registration struct {
	token    uint64
	listener Listener
}

// Registry is the process-local side-channel routing live job events to at
// most one subscriber per job. It is purely volatile: a dropped event is
// recoverable by polling the durable job row, so registrations are
// best-effort and last-register-wins.
type Registry struct {
	mu   sync.Mutex
	next uint64
	subs map[string]registration
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]registration)}
}

// Register installs the listener for a job, replacing any existing one, and
// returns a token identifying this registration. A superseded session keeps
// its stale token, so its own teardown cannot evict the replacement.
func (r *Registry) Register(jobID string, l Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.subs[jobID] = registration{token: r.next, listener: l}
	return r.next
}

// Unregister removes the job's registration only if it still carries the
// given token. It is a no-op when the job has no registration or the
// registration has been superseded.
func (r *Registry) Unregister(jobID string, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.subs[jobID]; ok && reg.token == token {
		delete(r.subs, jobID)
	}
}

// Drop removes any registration for the job regardless of token. Used by
// cancellation, where the whole job is going away.
func (r *Registry) Drop(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, jobID)
}

// Len reports the number of active registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Dispatch routes an event to the job's current listener, if any. Events
// for jobs without a listener are dropped; a late subscriber re-polls the
// store instead. Terminal events remove the registration before the
// callback runs, so no event can follow a terminal one.
func (r *Registry) Dispatch(ev Event) {
	r.mu.Lock()
	reg, ok := r.subs[ev.JobID]
	if ok && (ev.Kind == KindError || ev.Kind == KindComplete) {
		delete(r.subs, ev.JobID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	switch ev.Kind {
	case KindStatus:
		reg.listener.OnStatus(ev.JobID, ev.Status, ev.Step, ev.ProgressPercent)
	case KindIssue:
		reg.listener.OnIssue(ev.JobID, ev.Issue)
	case KindSummary:
		reg.listener.OnSummary(ev.JobID, ev.Summary)
	case KindError:
		reg.listener.OnError(ev.JobID, ev.Message)
	case KindComplete:
		reg.listener.OnComplete(ev.JobID)
	}
}
