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

// maxGapPromptChars caps how much extracted text goes into the prompt.
const maxGapPromptChars = 40000

// GapHandler runs the gap:analyze job: it feeds a paper's extracted text to
// the model and records each identified research gap for later validation.
type GapHandler struct {
	store     *store.Store
	artifacts ArtifactStore
	gen       assistant.Generator
}

func NewGapHandler(st *store.Store, artifacts ArtifactStore, gen assistant.Generator) *GapHandler {
	return &GapHandler{store: st, artifacts: artifacts, gen: gen}
}

type gapCandidate struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	PotentialImpact string `json:"potentialImpact"`
}

func (h *GapHandler) Handle(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error) {
	if h.gen == nil {
		return nil, errors.New("gap analysis requires a configured model")
	}
	if job.PaperID == nil {
		return nil, errors.New("gap analysis requires a paper id")
	}

	paper, err := h.store.GetPaper(ctx, *job.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}

	if !rep.Status(ctx, "loading paper text", 15) {
		return nil, nil
	}
	text := paper.Abstract
	if paper.ExtractedKey != "" {
		if body, err := h.artifacts.Get(ctx, paper.ExtractedKey); err == nil {
			text = string(body)
		}
	}
	if text == "" {
		return nil, errors.New("paper has no text to analyze")
	}
	if len(text) > maxGapPromptChars {
		text = text[:maxGapPromptChars]
	}

	if !rep.Status(ctx, "analyzing for research gaps", 40) {
		return nil, nil
	}
	raw, err := h.gen.Generate(ctx, buildGapPrompt(paper.Title, text))
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	jsonText, err := assistant.ExtractJSONArray(raw)
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	var candidates []gapCandidate
	if err := json.Unmarshal([]byte(jsonText), &candidates); err != nil {
		return nil, fmt.Errorf("decode gaps: %w", err)
	}

	if !rep.Status(ctx, "recording gaps", 80) {
		return nil, nil
	}
	for _, c := range candidates {
		if c.Name == "" {
			continue
		}
		gap := models.ResearchGap{
			PaperID:         paper.ID,
			ProjectID:       paper.ProjectID,
			JobID:           job.ID,
			Name:            c.Name,
			Description:     c.Description,
			Category:        c.Category,
			PotentialImpact: c.PotentialImpact,
			Status:          models.GapInitial,
		}
		if err := h.store.CreateGap(ctx, &gap); err != nil {
			return nil, fmt.Errorf("store gap: %w", err)
		}
	}
	return nil, nil
}

func buildGapPrompt(title, text string) string {
	return fmt.Sprintf(`You are a research analyst. Read the following paper and identify up to 5 research gaps it leaves open: limitations, unexplored directions, or unanswered questions.

Paper title: %q

Paper text:
%s

Respond ONLY with a JSON array in this exact format:
[
    {
        "name": "short gap name",
        "description": "what is missing and why it matters",
        "category": "methodology | data | theory | application",
        "potentialImpact": "expected impact of addressing it"
    }
]`, title, text)
}
