package models

import "time"

// Note is a free-form project note.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteImage records an image attached to a note. ThumbnailKey is filled in
// asynchronously by the thumbnail worker.
type NoteImage struct {
	ID           string    `json:"id"`
	NoteID       string    `json:"note_id"`
	ProjectID    string    `json:"project_id"`
	Filename     string    `json:"filename"`
	SourceURL    string    `json:"source_url"`
	Key          string    `json:"key,omitempty"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
