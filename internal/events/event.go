package events

import (
	"scholar-project-service/internal/models"
)

// Event kinds carried on the progress bus and mirrored to SSE clients.
const (
	KindStatus   = "status"
	KindIssue    = "issue"
	KindSummary  = "summary"
	KindError    = "error"
	KindComplete = "complete"
)

// Event is a single progress notification emitted by a worker for one job.
// Exactly one of Issue/Summary is set depending on Kind.
type Event struct {
	Kind            string                  `json:"kind"`
	JobID           string                  `json:"job_id"`
	Status          string                  `json:"status,omitempty"`
	Step            string                  `json:"step,omitempty"`
	ProgressPercent int                     `json:"progress_percent,omitempty"`
	Issue           *models.CitationIssue   `json:"issue,omitempty"`
	Summary         *models.CitationSummary `json:"summary,omitempty"`
	Message         string                  `json:"message,omitempty"`
}

// Status builds a status event.
func Status(jobID, status, step string, progressPercent int) Event {
	return Event{Kind: KindStatus, JobID: jobID, Status: status, Step: step, ProgressPercent: progressPercent}
}

// Issue builds an issue event.
func Issue(jobID string, issue *models.CitationIssue) Event {
	return Event{Kind: KindIssue, JobID: jobID, Issue: issue}
}

// Summary builds a summary event.
func Summary(jobID string, summary *models.CitationSummary) Event {
	return Event{Kind: KindSummary, JobID: jobID, Summary: summary}
}

// Error builds a terminal error event.
func Error(jobID, message string) Event {
	return Event{Kind: KindError, JobID: jobID, Status: models.StatusError, Message: message}
}

// Complete builds the terminal completion event.
func Complete(jobID, step string) Event {
	return Event{Kind: KindComplete, JobID: jobID, Status: models.StatusDone, Step: step, ProgressPercent: 100}
}
