package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ledongthuc/pdf"

	"scholar-project-service/internal/config"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

const maxDownloadBytes = 50 * 1024 * 1024

// ExtractionHandler runs the paper:extract job: download the paper's PDF,
// pull its plain text and store it as an artifact keyed to the paper.
type ExtractionHandler struct {
	store     *store.Store
	artifacts ArtifactStore
	http      *http.Client
}

func NewExtractionHandler(cfg config.Config, st *store.Store, artifacts ArtifactStore) *ExtractionHandler {
	return &ExtractionHandler{
		store:     st,
		artifacts: artifacts,
		http:      &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

func (h *ExtractionHandler) Handle(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error) {
	if job.PaperID == nil {
		return nil, errors.New("extraction requires a paper id")
	}
	paperID := *job.PaperID

	summary, err := h.extract(ctx, job, paperID, rep)
	if err != nil && job.Attempts+1 >= job.MaxAttempts {
		// Final attempt: reflect the failure on the paper so the batch
		// dispatcher stops treating it as in flight.
		_ = h.store.SetExtractionStatus(ctx, paperID, models.ExtractionFailed, "")
	}
	return summary, err
}

func (h *ExtractionHandler) extract(ctx context.Context, job models.Job, paperID string, rep *Reporter) (*models.CitationSummary, error) {
	paper, err := h.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	pdfURL := paper.PDFURL
	if v, ok := job.Payload["pdf_url"].(string); ok && v != "" {
		pdfURL = v
	}
	if pdfURL == "" {
		return nil, errors.New("paper has no pdf url")
	}

	if err := h.store.SetExtractionStatus(ctx, paperID, models.ExtractionProcessing, ""); err != nil {
		return nil, err
	}
	if !rep.Status(ctx, "downloading pdf", 20) {
		return nil, nil
	}

	data, err := download(ctx, h.http, pdfURL, maxDownloadBytes)
	if err != nil {
		return nil, err
	}

	if !rep.Status(ctx, "extracting text", 60) {
		return nil, nil
	}
	text, err := pdfText(data)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return nil, errors.New("pdf contains no extractable text")
	}

	if !rep.Status(ctx, "storing artifact", 85) {
		return nil, nil
	}
	key := fmt.Sprintf("papers/%s/extracted.txt", paperID)
	if _, err := h.artifacts.Put(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return nil, err
	}
	if err := h.store.SetExtractionStatus(ctx, paperID, models.ExtractionCompleted, key); err != nil {
		return nil, err
	}
	return nil, nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// download fetches a URL with a hard size cap.
func download(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("download too large (>%d bytes)", limit)
	}
	return body, nil
}
