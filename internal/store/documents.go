package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"scholar-project-service/internal/models"
)

// CreateDocument inserts a LaTeX document and its initial version snapshot.
func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DocumentType == "" {
		d.DocumentType = "latex"
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, project_id, title, content, document_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, d.ID, d.ProjectID, d.Title, d.Content, d.DocumentType, now)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO document_versions (id, document_id, version_number, content, commit_message, created_at)
		VALUES ($1, $2, 1, $3, 'initial version', $4)
	`, uuid.New().String(), d.ID, d.Content, now)
	if err != nil {
		return fmt.Errorf("insert initial version: %w", err)
	}

	return tx.Commit(ctx)
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (models.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, project_id::text, title, content, document_type, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

// DocumentsByProject lists a project's documents.
func (s *Store) DocumentsByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, project_id::text, title, content, document_type, created_at, updated_at
		FROM documents WHERE project_id = $1 ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SaveDocument updates a document's title/content and records a new version
// snapshot in the same transaction.
func (s *Store) SaveDocument(ctx context.Context, d *models.Document, commitMessage string) (models.DocumentVersion, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.DocumentVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE documents SET title = $2, content = $3, updated_at = NOW() WHERE id = $1
	`, d.ID, d.Title, d.Content)
	if err != nil {
		return models.DocumentVersion{}, fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.DocumentVersion{}, ErrNotFound
	}

	version := models.DocumentVersion{
		ID:            uuid.New().String(),
		DocumentID:    d.ID,
		Content:       d.Content,
		CommitMessage: commitMessage,
		CreatedAt:     time.Now().UTC(),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO document_versions (id, document_id, version_number, content, commit_message, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = $2), $3, $4, $5)
		RETURNING version_number
	`, version.ID, d.ID, d.Content, commitMessage, version.CreatedAt).Scan(&version.VersionNumber)
	if err != nil {
		return models.DocumentVersion{}, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.DocumentVersion{}, fmt.Errorf("commit: %w", err)
	}
	return version, nil
}

// DocumentVersions lists a document's version history, newest first.
// Content is included; callers expecting large histories should page.
func (s *Store) DocumentVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, document_id::text, version_number, content, commit_message, created_at
		FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []models.DocumentVersion
	for rows.Next() {
		var v models.DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.CommitMessage, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// RestoreDocumentVersion copies a historical version's content back onto
// the document, recording the restore as a fresh version.
func (s *Store) RestoreDocumentVersion(ctx context.Context, documentID string, versionNumber int) (models.Document, error) {
	var content string
	err := s.pool.QueryRow(ctx, `
		SELECT content FROM document_versions WHERE document_id = $1 AND version_number = $2
	`, documentID, versionNumber).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("load version: %w", err)
	}

	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	doc.Content = content
	if _, err := s.SaveDocument(ctx, &doc, fmt.Sprintf("restore version %d", versionNumber)); err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

// DeleteDocument removes a document and its versions.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Content, &d.DocumentType, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("scan document: %w", err)
	}
	return d, nil
}
