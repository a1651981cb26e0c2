package models

import "time"

// Project is a research workspace grouping papers, notes, todos and documents.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Starred     bool      `json:"starred"`
	Progress    int       `json:"progress"` // 0-100
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Paper extraction states tracked alongside the paper row. A new paper
// starts at "none"; "pending" means an extraction job has been enqueued.
const (
	ExtractionNone       = "none"
	ExtractionPending    = "pending"
	ExtractionProcessing = "processing"
	ExtractionCompleted  = "completed"
	ExtractionFailed     = "failed"
)

// Paper is a library entry inside a project. ExtractedKey points at the
// extracted-text artifact once extraction has completed.
type Paper struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	Title            string    `json:"title"`
	Authors          []string  `json:"authors,omitempty"`
	Abstract         string    `json:"abstract,omitempty"`
	DOI              string    `json:"doi,omitempty"`
	PDFURL           string    `json:"pdf_url,omitempty"`
	Source           string    `json:"source,omitempty"`
	Year             int       `json:"year,omitempty"`
	CitationKey      string    `json:"citation_key,omitempty"`
	Favorite         bool      `json:"favorite"`
	ExtractionStatus string    `json:"extraction_status"`
	Extracted        bool      `json:"extracted"`
	ExtractedKey     string    `json:"extracted_key,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
