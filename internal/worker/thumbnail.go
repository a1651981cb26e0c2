package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/disintegration/imaging"

	"scholar-project-service/internal/config"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

const maxImageBytes = 25 * 1024 * 1024

// ThumbnailHandler runs the note:thumbnail job: download a note image,
// scale it down and store the thumbnail artifact back on the image record.
type ThumbnailHandler struct {
	store     *store.Store
	artifacts ArtifactStore
	http      *http.Client
	width     int
}

func NewThumbnailHandler(cfg config.Config, st *store.Store, artifacts ArtifactStore) *ThumbnailHandler {
	width := cfg.ThumbnailWidth
	if width == 0 {
		width = 300
	}
	return &ThumbnailHandler{
		store:     st,
		artifacts: artifacts,
		http:      &http.Client{Timeout: cfg.DownloadTimeout},
		width:     width,
	}
}

func (h *ThumbnailHandler) Handle(ctx context.Context, job models.Job, rep *Reporter) (*models.CitationSummary, error) {
	imageID, _ := job.Payload["image_id"].(string)
	if imageID == "" {
		return nil, errors.New("payload has no image_id")
	}

	img, err := h.store.GetNoteImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load note image: %w", err)
	}
	if img.SourceURL == "" {
		return nil, errors.New("note image has no source url")
	}

	if !rep.Status(ctx, "downloading image", 25) {
		return nil, nil
	}
	data, err := download(ctx, h.http, img.SourceURL, maxImageBytes)
	if err != nil {
		return nil, err
	}

	if !rep.Status(ctx, "generating thumbnail", 60) {
		return nil, nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Resize(decoded, h.width, 0, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	if !rep.Status(ctx, "storing thumbnail", 85) {
		return nil, nil
	}
	key := fmt.Sprintf("notes/%s/thumbnails/%s.jpg", img.NoteID, img.ID)
	if _, err := h.artifacts.Put(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		return nil, err
	}
	if err := h.store.SetNoteImageThumbnail(ctx, img.ID, key); err != nil {
		return nil, err
	}
	return nil, nil
}
