package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"scholar-project-service/internal/assistant"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

// SearchHandler runs the search:web job: it asks the model for relevant
// literature and files each suggestion into the project's paper library.
type SearchHandler struct {
	store *store.Store
	gen   assistant.Generator
}

func NewSearchHandler(st *store.Store, gen assistant.Generator) *SearchHandler {
	return &SearchHandler{store: st, gen: gen}
}

type paperCandidate struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     int      `json:"year"`
	DOI      string   `json:"doi"`
	URL      string   `json:"url"`
	Abstract string   `json:"abstract"`
}

func (h *SearchHandler) Handle(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error) {
	if h.gen == nil {
		return nil, errors.New("web search requires a configured model")
	}
	if job.ProjectID == nil {
		return nil, errors.New("web search requires a project id")
	}
	query, _ := job.Payload["query"].(string)
	if query == "" {
		return nil, errors.New("payload has no query")
	}
	maxResults := 10
	if v, ok := job.Payload["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	if !rep.Status(ctx, "searching literature", 30) {
		return nil, nil
	}
	raw, err := h.gen.Generate(ctx, buildSearchPrompt(query, maxResults))
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	jsonText, err := assistant.ExtractJSONArray(raw)
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	var candidates []paperCandidate
	if err := json.Unmarshal([]byte(jsonText), &candidates); err != nil {
		return nil, fmt.Errorf("decode papers: %w", err)
	}
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	if !rep.Status(ctx, "filing results", 70) {
		return nil, nil
	}
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		paper := models.Paper{
			ProjectID: *job.ProjectID,
			Title:     c.Title,
			Authors:   c.Authors,
			Abstract:  c.Abstract,
			DOI:       c.DOI,
			PDFURL:    c.URL,
			Source:    "web-search",
			Year:      c.Year,
		}
		if err := h.store.CreatePaper(ctx, &paper); err != nil {
			return nil, fmt.Errorf("store paper: %w", err)
		}
	}
	return nil, nil
}

func buildSearchPrompt(query string, maxResults int) string {
	return fmt.Sprintf(`You are an academic search assistant. Suggest up to %d real published papers relevant to the following query. Prefer well-known, verifiable work and include a DOI when you know it.

Query: %q

Respond ONLY with a JSON array in this exact format:
[
    {
        "title": "paper title",
        "authors": ["author"],
        "year": 2020,
        "doi": "10.xxxx/xxxxx",
        "url": "link to the paper or pdf if known",
        "abstract": "one-paragraph summary"
    }
]`, maxResults, query)
}
