package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

// citeRe matches \cite, \citep and \citet commands (starred or not) and
// captures the comma-separated key list.
var citeRe = regexp.MustCompile(`\\cite[tp]?\*?\{([^}]*)\}`)

// claimRe flags prose that leans on prior work without a citation nearby.
var claimRe = regexp.MustCompile(`\bet al\.`)

// CitationHandler runs the citation:check job: it cross-references every
// \cite command in a LaTeX document against the project's paper library and
// records a finding for each mismatch.
type CitationHandler struct {
	store *store.Store
}

func NewCitationHandler(st *store.Store) *CitationHandler {
	return &CitationHandler{store: st}
}

type citeOccurrence struct {
	keys     []string
	text     string
	position int
	length   int
	line     int
}

func (h *CitationHandler) Handle(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error) {
	if job.DocumentID == nil {
		return nil, errors.New("citation check requires a document id")
	}
	if !rep.Status(ctx, "loading document", 10) {
		return nil, nil
	}

	doc, err := h.store.GetDocument(ctx, *job.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	papers, err := h.store.PapersByProject(ctx, doc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	library := libraryKeys(papers, selectedIDs(job.Payload))

	if !rep.Status(ctx, "parsing citations", 30) {
		return nil, nil
	}
	cites := parseCitations(doc.Content)

	if !rep.Status(ctx, "checking citation keys", 60) {
		return nil, nil
	}

	summary := &models.CitationSummary{
		TotalCitations:   len(cites),
		IssuesBySeverity: map[string]int{},
		IssuesByType:     map[string]int{},
		CheckedAt:        time.Now().UTC(),
	}
	record := func(issue models.CitationIssue) error {
		issue.JobID = job.ID
		issue.ProjectID = doc.ProjectID
		issue.DocumentID = doc.ID
		if err := rep.Issue(ctx, &issue); err != nil {
			return err
		}
		summary.TotalIssues++
		summary.IssuesBySeverity[issue.Severity]++
		summary.IssuesByType[issue.IssueType]++
		return nil
	}

	cited := make(map[string]bool)
	for _, c := range cites {
		for _, key := range c.keys {
			cited[key] = true
			if library[key] {
				continue
			}
			err := record(models.CitationIssue{
				IssueType:    models.IssueUnknownKey,
				Severity:     models.SeverityHigh,
				CitationText: c.text,
				Position:     c.position,
				Length:       c.length,
				LineStart:    c.line,
				LineEnd:      c.line,
				Message:      fmt.Sprintf("cited key %q does not match any paper in the project library", key),
				CitedKeys:    []string{key},
			})
			if err != nil {
				return nil, err
			}
		}
	}

	for _, key := range sortedKeys(library) {
		if cited[key] {
			continue
		}
		err := record(models.CitationIssue{
			IssueType: models.IssueOrphanReference,
			Severity:  models.SeverityLow,
			Message:   fmt.Sprintf("library paper %q is never cited in this document", key),
			CitedKeys: []string{key},
		})
		if err != nil {
			return nil, err
		}
	}

	if !rep.Status(ctx, "scanning for uncited claims", 80) {
		return nil, nil
	}
	for _, claim := range uncitedClaims(doc.Content) {
		if err := record(claim); err != nil {
			return nil, err
		}
	}

	hash := sha256.Sum256([]byte(doc.Content))
	summary.ContentHash = hex.EncodeToString(hash[:])

	if !rep.Status(ctx, "building summary", 95) {
		return nil, nil
	}
	return summary, nil
}

// selectedIDs reads the optional paper filter from the job payload.
func selectedIDs(payload map[string]any) map[string]bool {
	raw, ok := payload["selected_paper_ids"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids[id] = true
		}
	}
	return ids
}

func libraryKeys(papers []models.Paper, selected map[string]bool) map[string]bool {
	keys := make(map[string]bool)
	for _, p := range papers {
		if p.CitationKey == "" {
			continue
		}
		if selected != nil && !selected[p.ID] {
			continue
		}
		keys[p.CitationKey] = true
	}
	return keys
}

func parseCitations(content string) []citeOccurrence {
	var cites []citeOccurrence
	for _, m := range citeRe.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[0], m[1]
		keyList := content[m[2]:m[3]]
		var keys []string
		for _, k := range strings.Split(keyList, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cites = append(cites, citeOccurrence{
			keys:     keys,
			text:     content[start:end],
			position: start,
			length:   end - start,
			line:     lineAt(content, start),
		})
	}
	return cites
}

// uncitedClaims flags lines that reference prior work ("et al.") without
// any citation command on the same line.
func uncitedClaims(content string) []models.CitationIssue {
	var issues []models.CitationIssue
	offset := 0
	for i, line := range strings.Split(content, "\n") {
		if loc := claimRe.FindStringIndex(line); loc != nil && !citeRe.MatchString(line) {
			issues = append(issues, models.CitationIssue{
				IssueType:    models.IssueMissingCitation,
				Severity:     models.SeverityMedium,
				CitationText: strings.TrimSpace(line),
				Position:     offset + loc[0],
				Length:       loc[1] - loc[0],
				LineStart:    i + 1,
				LineEnd:      i + 1,
				Message:      "reference to prior work without a citation on this line",
			})
		}
		offset += len(line) + 1
	}
	return issues
}

func lineAt(content string, pos int) int {
	return strings.Count(content[:pos], "\n") + 1
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
