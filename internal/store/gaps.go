package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"scholar-project-service/internal/models"
)

// CreateGap inserts a research gap produced by the gap-analysis worker.
func (s *Store) CreateGap(ctx context.Context, g *models.ResearchGap) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.Status == "" {
		g.Status = models.GapInitial
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO research_gaps (id, paper_id, project_id, job_id, name, description, category, status, validation_notes, potential_impact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, g.ID, g.PaperID, g.ProjectID, emptyToNil(g.JobID), g.Name, g.Description, g.Category,
		g.Status, g.ValidationNotes, g.PotentialImpact, now)
	if err != nil {
		return fmt.Errorf("insert gap: %w", err)
	}
	return nil
}

const gapColumns = `id::text, paper_id::text, project_id::text, job_id::text, name, description, category, status, validation_notes, potential_impact, created_at, updated_at`

// GetGap fetches a research gap by id.
func (s *Store) GetGap(ctx context.Context, id string) (models.ResearchGap, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gapColumns+` FROM research_gaps WHERE id = $1`, id)
	return scanGap(row)
}

// GapsByPaper lists the gaps identified for a paper.
func (s *Store) GapsByPaper(ctx context.Context, paperID string) ([]models.ResearchGap, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+gapColumns+` FROM research_gaps WHERE paper_id = $1 ORDER BY created_at`, paperID)
	if err != nil {
		return nil, fmt.Errorf("query gaps: %w", err)
	}
	defer rows.Close()

	var gaps []models.ResearchGap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// UpdateGapStatus transitions a gap's validation state.
func (s *Store) UpdateGapStatus(ctx context.Context, id, status, validationNotes string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE research_gaps SET status = $2, validation_notes = $3, updated_at = NOW() WHERE id = $1
	`, id, status, validationNotes)
	if err != nil {
		return fmt.Errorf("update gap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGap(row pgx.Row) (models.ResearchGap, error) {
	var g models.ResearchGap
	var jobID pgtype.Text
	err := row.Scan(&g.ID, &g.PaperID, &g.ProjectID, &jobID, &g.Name, &g.Description, &g.Category,
		&g.Status, &g.ValidationNotes, &g.PotentialImpact, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ResearchGap{}, ErrNotFound
	}
	if err != nil {
		return models.ResearchGap{}, fmt.Errorf("scan gap: %w", err)
	}
	if jobID.Valid {
		g.JobID = jobID.String
	}
	return g, nil
}
