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

// CreatePaper inserts a paper into a project's library.
func (s *Store) CreatePaper(ctx context.Context, p *models.Paper) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.ExtractionStatus == "" {
		p.ExtractionStatus = models.ExtractionNone
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	authors, err := json.Marshal(orEmpty(p.Authors))
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO papers (id, project_id, title, authors, abstract, doi, pdf_url, source, year, citation_key, favorite, extraction_status, extracted, extracted_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`, p.ID, p.ProjectID, p.Title, authors, p.Abstract, p.DOI, p.PDFURL, p.Source, p.Year,
		p.CitationKey, p.Favorite, p.ExtractionStatus, p.Extracted, p.ExtractedKey, now)
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}

const paperColumns = `id::text, project_id::text, title, authors, abstract, doi, pdf_url, source, year, citation_key, favorite, extraction_status, extracted, extracted_key, created_at, updated_at`

// GetPaper fetches a paper by id.
func (s *Store) GetPaper(ctx context.Context, id string) (models.Paper, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = $1`, id)
	return scanPaper(row)
}

// PapersByProject lists a project's library.
func (s *Store) PapersByProject(ctx context.Context, projectID string) ([]models.Paper, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paperColumns+` FROM papers WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// TogglePaperFavorite flips the favorite flag and returns the new value.
func (s *Store) TogglePaperFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := s.pool.QueryRow(ctx, `
		UPDATE papers SET favorite = NOT favorite, updated_at = NOW() WHERE id = $1
		RETURNING favorite
	`, id).Scan(&favorite)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorite, nil
}

// SetExtractionStatus records the extraction state machine transition for a
// paper. Extracted and the artifact key are only set on completion.
func (s *Store) SetExtractionStatus(ctx context.Context, id, status, extractedKey string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE papers
		SET extraction_status = $2,
		    extracted = ($2 = 'completed'),
		    extracted_key = CASE WHEN $3 <> '' THEN $3 ELSE extracted_key END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, extractedKey)
	if err != nil {
		return fmt.Errorf("set extraction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePaper removes a paper from the library.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPaper(row pgx.Row) (models.Paper, error) {
	var p models.Paper
	var authors []byte
	err := row.Scan(&p.ID, &p.ProjectID, &p.Title, &authors, &p.Abstract, &p.DOI, &p.PDFURL,
		&p.Source, &p.Year, &p.CitationKey, &p.Favorite, &p.ExtractionStatus, &p.Extracted,
		&p.ExtractedKey, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, ErrNotFound
	}
	if err != nil {
		return models.Paper{}, fmt.Errorf("scan paper: %w", err)
	}
	if err := json.Unmarshal(authors, &p.Authors); err != nil {
		return models.Paper{}, fmt.Errorf("unmarshal authors: %w", err)
	}
	return p, nil
}
