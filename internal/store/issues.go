package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"scholar-project-service/internal/models"
)

// InsertIssue persists a citation issue found during a check. The issue id
// is allocated here when empty.
func (s *Store) InsertIssue(ctx context.Context, issue *models.CitationIssue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}

	citedKeys, err := json.Marshal(orEmpty(issue.CitedKeys))
	if err != nil {
		return fmt.Errorf("marshal cited keys: %w", err)
	}
	suggestions, err := json.Marshal(issue.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	evidence, err := json.Marshal(issue.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO citation_issues (id, job_id, project_id, document_id, issue_type, severity, citation_text, position, length, line_start, line_end, message, cited_keys, suggestions, evidence, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, issue.ID, issue.JobID, issue.ProjectID, issue.DocumentID, issue.IssueType, issue.Severity,
		issue.CitationText, issue.Position, issue.Length, issue.LineStart, issue.LineEnd,
		issue.Message, citedKeys, suggestions, evidence, issue.Resolved, issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// IssuesByJob returns all issues recorded for a job, in insertion order.
func (s *Store) IssuesByJob(ctx context.Context, jobID string) ([]models.CitationIssue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, job_id::text, project_id::text, document_id::text, issue_type, severity, citation_text, position, length, line_start, line_end, message, cited_keys, suggestions, evidence, resolved, created_at
		FROM citation_issues
		WHERE job_id = $1
		ORDER BY created_at, id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []models.CitationIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// SetIssueResolved toggles the user-facing resolved flag on an issue. This
// is independent of the owning job's lifecycle.
func (s *Store) SetIssueResolved(ctx context.Context, issueID string, resolved bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE citation_issues SET resolved = $2 WHERE id = $1
	`, issueID, resolved)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIssue(row pgx.Row) (models.CitationIssue, error) {
	var issue models.CitationIssue
	var citedKeys, suggestions, evidence []byte

	err := row.Scan(&issue.ID, &issue.JobID, &issue.ProjectID, &issue.DocumentID, &issue.IssueType,
		&issue.Severity, &issue.CitationText, &issue.Position, &issue.Length, &issue.LineStart,
		&issue.LineEnd, &issue.Message, &citedKeys, &suggestions, &evidence, &issue.Resolved, &issue.CreatedAt)
	if err != nil {
		return models.CitationIssue{}, fmt.Errorf("scan issue: %w", err)
	}

	if err := json.Unmarshal(citedKeys, &issue.CitedKeys); err != nil {
		return models.CitationIssue{}, fmt.Errorf("unmarshal cited keys: %w", err)
	}
	if err := json.Unmarshal(suggestions, &issue.Suggestions); err != nil {
		return models.CitationIssue{}, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	if err := json.Unmarshal(evidence, &issue.Evidence); err != nil {
		return models.CitationIssue{}, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return issue, nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
