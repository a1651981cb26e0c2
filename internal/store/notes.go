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

// CreateNote inserts a project note.
func (s *Store) CreateNote(ctx context.Context, n *models.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	tags, err := json.Marshal(orEmpty(n.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notes (id, project_id, title, content, tags, favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, n.ID, n.ProjectID, n.Title, n.Content, tags, n.Favorite, now)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNote fetches a note by id.
func (s *Store) GetNote(ctx context.Context, id string) (models.Note, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, project_id::text, title, content, tags, favorite, created_at, updated_at
		FROM notes WHERE id = $1
	`, id)
	return scanNote(row)
}

// NotesByProject lists a project's notes, most recently updated first.
func (s *Store) NotesByProject(ctx context.Context, projectID string) ([]models.Note, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, project_id::text, title, content, tags, favorite, created_at, updated_at
		FROM notes WHERE project_id = $1 ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// UpdateNote overwrites the mutable fields of a note.
func (s *Store) UpdateNote(ctx context.Context, n *models.Note) error {
	tags, err := json.Marshal(orEmpty(n.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notes SET title = $2, content = $3, tags = $4, favorite = $5, updated_at = NOW()
		WHERE id = $1
	`, n.ID, n.Title, n.Content, tags, n.Favorite)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNote removes a note and its image records.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateNoteImage records an uploaded note image prior to thumbnailing.
func (s *Store) CreateNoteImage(ctx context.Context, img *models.NoteImage) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	img.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO note_images (id, note_id, project_id, filename, source_url, key, thumbnail_key, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, img.ID, img.NoteID, img.ProjectID, img.Filename, img.SourceURL, img.Key, img.ThumbnailKey,
		img.ContentType, img.SizeBytes, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert note image: %w", err)
	}
	return nil
}

// GetNoteImage fetches a note image record.
func (s *Store) GetNoteImage(ctx context.Context, id string) (models.NoteImage, error) {
	var img models.NoteImage
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, note_id::text, project_id::text, filename, source_url, key, thumbnail_key, content_type, size_bytes, created_at
		FROM note_images WHERE id = $1
	`, id).Scan(&img.ID, &img.NoteID, &img.ProjectID, &img.Filename, &img.SourceURL, &img.Key,
		&img.ThumbnailKey, &img.ContentType, &img.SizeBytes, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NoteImage{}, ErrNotFound
	}
	if err != nil {
		return models.NoteImage{}, fmt.Errorf("scan note image: %w", err)
	}
	return img, nil
}

// SetNoteImageThumbnail records the thumbnail artifact produced by the worker.
func (s *Store) SetNoteImageThumbnail(ctx context.Context, id, thumbnailKey string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE note_images SET thumbnail_key = $2 WHERE id = $1
	`, id, thumbnailKey)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNote(row pgx.Row) (models.Note, error) {
	var n models.Note
	var tags []byte
	err := row.Scan(&n.ID, &n.ProjectID, &n.Title, &n.Content, &tags, &n.Favorite, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Note{}, ErrNotFound
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("scan note: %w", err)
	}
	if err := json.Unmarshal(tags, &n.Tags); err != nil {
		return models.Note{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	return n, nil
}
