package models

import "time"

// Research-gap validation states.
const (
	GapInitial    = "initial"
	GapValidating = "validating"
	GapValid      = "valid"
	GapInvalid    = "invalid"
	GapModified   = "modified"
)

// ResearchGap is a candidate gap identified for a paper by the gap-analysis
// worker and later validated or discarded.
type ResearchGap struct {
	ID              string    `json:"id"`
	PaperID         string    `json:"paper_id"`
	ProjectID       string    `json:"project_id"`
	JobID           string    `json:"job_id,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Status          string    `json:"status"`
	ValidationNotes string    `json:"validation_notes,omitempty"`
	PotentialImpact string    `json:"potential_impact,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
