package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"scholar-project-service/internal/models"
)

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	topics, err := json.Marshal(orEmpty(p.Topics))
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, description, domain, topics, starred, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, p.ID, p.Name, p.Description, p.Domain, topics, p.Starred, p.Progress, now)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, name, description, domain, topics, starred, progress, created_at, updated_at
		FROM projects WHERE id = $1
	`, id)
	return scanProject(row)
}

// ListProjects returns all projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, description, domain, topics, starred, progress, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject overwrites the mutable fields of a project.
func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	topics, err := json.Marshal(orEmpty(p.Topics))
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET name = $2, description = $3, domain = $4, topics = $5, progress = $6, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Domain, topics, p.Progress)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleProjectStar flips the starred flag and returns the new value.
func (s *Store) ToggleProjectStar(ctx context.Context, id string) (bool, error) {
	var starred bool
	err := s.pool.QueryRow(ctx, `
		UPDATE projects SET starred = NOT starred, updated_at = NOW() WHERE id = $1
		RETURNING starred
	`, id).Scan(&starred)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle star: %w", err)
	}
	return starred, nil
}

// DeleteProject removes a project and, via cascades, its papers, notes and
// documents.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (models.Project, error) {
	var p models.Project
	var topics []byte
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Domain, &topics, &p.Starred, &p.Progress, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("scan project: %w", err)
	}
	if err := json.Unmarshal(topics, &p.Topics); err != nil {
		return models.Project{}, fmt.Errorf("unmarshal topics: %w", err)
	}
	return p, nil
}
