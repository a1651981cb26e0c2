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

// TodoFilter narrows ListTodos. Zero values mean "no filter".
type TodoFilter struct {
	Status    string
	Priority  string
	Category  string
	ProjectID string
	DueBefore *time.Time
}

// CreateTodo inserts a todo.
func (s *Store) CreateTodo(ctx context.Context, t *models.Todo) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TodoPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO todos (id, title, description, status, priority, category, project_id, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.Category, t.ProjectID, t.DueDate, now)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

const todoColumns = `id::text, title, description, status, priority, category, project_id::text, due_date, created_at, updated_at, completed_at`

// GetTodo fetches a todo by id.
func (s *Store) GetTodo(ctx context.Context, id string) (models.Todo, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	return scanTodo(row)
}

// ListTodos returns todos matching the filter, newest first.
func (s *Store) ListTodos(ctx context.Context, f TodoFilter) ([]models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE 1=1`
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.DueBefore != nil {
		add("due_date <= $%d", *f.DueBefore)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// UpdateTodo overwrites the mutable fields of a todo. Completing sets
// completed_at, reopening clears it.
func (s *Store) UpdateTodo(ctx context.Context, t *models.Todo) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE todos
		SET title = $2, description = $3, status = $4, priority = $5, category = $6,
		    project_id = $7, due_date = $8, updated_at = NOW(),
		    completed_at = CASE WHEN $4 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE NULL END
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.Category, t.ProjectID, t.DueDate)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTodo removes a todo.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTodo(row pgx.Row) (models.Todo, error) {
	var t models.Todo
	var projectID pgtype.Text
	var dueDate, completedAt pgtype.Timestamptz

	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category,
		&projectID, &dueDate, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("scan todo: %w", err)
	}
	t.ProjectID = textPtr(projectID)
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if completedAt.Valid {
		c := completedAt.Time
		t.CompletedAt = &c
	}
	return t, nil
}
