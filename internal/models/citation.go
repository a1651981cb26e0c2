package models

import "time"

// Issue severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Issue types produced by the citation checker.
const (
	IssueMissingCitation  = "missing-citation"
	IssueUnknownKey       = "unknown-key"
	IssueOrphanReference  = "orphan-reference"
	IssueWeakSupport      = "weak-support"
	IssuePossiblePlagiary = "possible-plagiarism"
)

// CitationIssue is a single finding produced during a citation check job.
// The resolved flag is user-mutable after the job has completed.
type CitationIssue struct {
	ID           string       `json:"id"`
	JobID        string       `json:"job_id"`
	ProjectID    string       `json:"project_id"`
	DocumentID   string       `json:"document_id"`
	IssueType    string       `json:"issue_type"`
	Severity     string       `json:"severity"`
	CitationText string       `json:"citation_text,omitempty"`
	Position     int          `json:"position"`
	Length       int          `json:"length"`
	LineStart    int          `json:"line_start"`
	LineEnd      int          `json:"line_end"`
	Message      string       `json:"message"`
	CitedKeys    []string     `json:"cited_keys,omitempty"`
	Suggestions  []Suggestion `json:"suggestions,omitempty"`
	Evidence     []Evidence   `json:"evidence,omitempty"`
	Resolved     bool         `json:"resolved"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Suggestion is a remediation candidate attached to an issue, either drawn
// from the project's local paper library or from a web search.
type Suggestion struct {
	Kind    string   `json:"kind"` // "local" or "web"
	Score   float64  `json:"score"`
	PaperID string   `json:"paper_id,omitempty"`
	URL     string   `json:"url,omitempty"`
	BibTex  string   `json:"bib_tex,omitempty"`
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Year    int      `json:"year,omitempty"`
}

// Evidence is a scored text match backing an issue.
type Evidence struct {
	ID               string  `json:"id"`
	Source           string  `json:"source,omitempty"`
	MatchedText      string  `json:"matched_text"`
	Similarity       float64 `json:"similarity"`    // 0-1
	SupportScore     float64 `json:"support_score"` // 0-1
	ExtractedContext string  `json:"extracted_context,omitempty"`
}

// CitationSummary is the normalized result payload of a finished check.
type CitationSummary struct {
	TotalCitations   int            `json:"total_citations"`
	TotalIssues      int            `json:"total_issues"`
	IssuesBySeverity map[string]int `json:"issues_by_severity,omitempty"`
	IssuesByType     map[string]int `json:"issues_by_type,omitempty"`
	ContentHash      string         `json:"content_hash,omitempty"`
	CheckedAt        time.Time      `json:"checked_at"`
}
