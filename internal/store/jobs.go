package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"scholar-project-service/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrTerminal is returned when an operation targets a job already in a
// terminal state.
var ErrTerminal = errors.New("job already terminal")

// CreateJobParams collects inputs required to insert a job.
type CreateJobParams struct {
	Type        string
	Priority    string
	ProjectID   string
	DocumentID  string
	PaperID     string
	Payload     map[string]any
	RunAt       time.Time
	MaxAttempts int
}

// CreateJob inserts a job row in queued state.
func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (models.Job, error) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 5
	}
	if p.Priority == "" {
		p.Priority = "default"
	}
	if p.Payload == nil {
		p.Payload = map[string]any{}
	}
	if p.RunAt.IsZero() {
		p.RunAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return models.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, priority, project_id, document_id, paper_id, payload, status, current_step, progress_percent, attempts, max_attempts, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', 0, 0, $9, $10, $11, $11)
	`, id, p.Type, p.Priority, emptyToNil(p.ProjectID), emptyToNil(p.DocumentID), emptyToNil(p.PaperID), payloadJSON, models.StatusQueued, p.MaxAttempts, p.RunAt, now)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}

	return models.Job{
		ID:          id,
		Type:        p.Type,
		Priority:    p.Priority,
		ProjectID:   emptyToNil(p.ProjectID),
		DocumentID:  emptyToNil(p.DocumentID),
		PaperID:     emptyToNil(p.PaperID),
		Payload:     p.Payload,
		Status:      models.StatusQueued,
		MaxAttempts: p.MaxAttempts,
		NextRunAt:   p.RunAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

const jobColumns = `id::text, type, priority, project_id::text, document_id::text, paper_id::text, payload, status, current_step, progress_percent, attempts, max_attempts, next_run_at, last_error, summary, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (models.Job, error) {
	var job models.Job
	var projectID, documentID, paperID, lastErr pgtype.Text
	var payloadJSON []byte
	var summaryJSON []byte
	var completedAt pgtype.Timestamptz

	err := row.Scan(&job.ID, &job.Type, &job.Priority, &projectID, &documentID, &paperID, &payloadJSON,
		&job.Status, &job.CurrentStep, &job.ProgressPercent, &job.Attempts, &job.MaxAttempts,
		&job.NextRunAt, &lastErr, &summaryJSON, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
		return models.Job{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(summaryJSON) > 0 {
		var summary models.CitationSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return models.Job{}, fmt.Errorf("unmarshal summary: %w", err)
		}
		job.Summary = &summary
	}
	job.ProjectID = textPtr(projectID)
	job.DocumentID = textPtr(documentID)
	job.PaperID = textPtr(paperID)
	job.LastError = textPtr(lastErr)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// GetJob fetches a job by id, including its issues.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		return models.Job{}, err
	}
	issues, err := s.IssuesByJob(ctx, job.ID)
	if err != nil {
		return models.Job{}, err
	}
	job.Issues = issues
	return job, nil
}

// UpdateProgress records a worker progress callback. Progress never goes
// backwards while running, and terminal rows are left untouched; the
// returned flag reports whether the update applied.
func (s *Store) UpdateProgress(ctx context.Context, id, status, step string, progressPercent int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
		    current_step = $3,
		    progress_percent = GREATEST(progress_percent, $4),
		    updated_at = NOW(),
		    completed_at = CASE WHEN $2 IN ('done', 'error') THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status NOT IN ('done', 'error')
	`, id, status, step, progressPercent)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteJob transitions a job to done with its summary payload.
func (s *Store) CompleteJob(ctx context.Context, id, step string, summary *models.CitationSummary) error {
	var summaryJSON []byte
	if summary != nil {
		var err error
		summaryJSON, err = json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, current_step = $3, progress_percent = 100, summary = $4,
		    last_error = NULL, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('done', 'error')
	`, id, models.StatusDone, step, summaryJSON)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTerminal
	}
	return nil
}

// FailJob transitions a job to the terminal error state.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, last_error = $3, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('done', 'error')
	`, id, models.StatusError, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTerminal
	}
	return nil
}

// RequeueAttempt puts a failed attempt back in the queued state with an
// updated retry schedule.
func (s *Store) RequeueAttempt(ctx context.Context, id string, attempts int, nextRun time.Time, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, attempts = $3, next_run_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('done', 'error')
	`, id, models.StatusQueued, attempts, nextRun, lastErr)
	return err
}

// LatestJobForDocument returns the most recent job of the given type for a
// document.
func (s *Store) LatestJobForDocument(ctx context.Context, documentID, jobType string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE document_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID, jobType)
	job, err := scanJob(row)
	if err != nil {
		return models.Job{}, err
	}
	issues, err := s.IssuesByJob(ctx, job.ID)
	if err != nil {
		return models.Job{}, err
	}
	job.Issues = issues
	return job, nil
}

// JobsByProject lists jobs of one type for a project, newest first.
func (s *Store) JobsByProject(ctx context.Context, projectID, jobType string) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE project_id = $1 AND type = $2
		ORDER BY created_at DESC
	`, projectID, jobType)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// AppendAudit adds an audit row.
func (s *Store) AppendAudit(ctx context.Context, jobID, event, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (job_id, event, detail, ts)
		VALUES ($1, $2, $3, NOW())
	`, jobID, event, detail)
	return err
}

// StaleRunningJobs returns ids of jobs stuck in running past the cutoff.
// The sweeper fails them so clients are not left polling forever.
func (s *Store) StaleRunningJobs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text FROM jobs
		WHERE status = $1 AND updated_at < $2
		LIMIT $3
	`, models.StatusRunning, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
