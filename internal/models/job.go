package models

import (
	"time"
)

// Job lifecycle states persisted in Postgres. Done and Error are terminal:
// once either is reached the row is never mutated again.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Job types dispatched through the queue.
const (
	JobTypeCitationCheck = "citation:check"
	JobTypeExtraction    = "paper:extract"
	JobTypeGapAnalysis   = "gap:analyze"
	JobTypeWebSearch     = "search:web"
	JobTypeThumbnail     = "note:thumbnail"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusError
}

// Job represents a unit of asynchronous background work persisted in Postgres.
// The row is the durable source of truth for progress; live SSE streams are a
// volatile side-channel on top of it.
type Job struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Priority        string           `json:"priority"`
	ProjectID       *string          `json:"project_id,omitempty"`
	DocumentID      *string          `json:"document_id,omitempty"`
	PaperID         *string          `json:"paper_id,omitempty"`
	Payload         map[string]any   `json:"payload"`
	Status          string           `json:"status"`
	CurrentStep     string           `json:"current_step"`
	ProgressPercent int              `json:"progress_percent"`
	Attempts        int              `json:"attempts"`
	MaxAttempts     int              `json:"max_attempts"`
	NextRunAt       time.Time        `json:"next_run_at"`
	LastError       *string          `json:"last_error,omitempty"`
	Summary         *CitationSummary `json:"summary,omitempty"`
	Issues          []CitationIssue  `json:"issues,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// AuditLog is a simple audit event row.
type AuditLog struct {
	JobID    string    `json:"job_id"`
	Event    string    `json:"event"`
	Detail   string    `json:"detail"`
	Recorded time.Time `json:"recorded_at"`
}
