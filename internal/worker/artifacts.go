package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"scholar-project-service/internal/config"
)

// ArtifactStore persists worker outputs (extracted paper text, note-image
// thumbnails) under stable keys and reads them back for later jobs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewArtifactStore picks the backend from configuration: S3 when a bucket
// is set and ARTIFACT_DEST asks for it, the local filesystem otherwise.
func NewArtifactStore(ctx context.Context, cfg config.Config) (ArtifactStore, error) {
	if strings.EqualFold(cfg.ArtifactDest, "s3") {
		if cfg.ArtifactBucket == "" {
			return nil, errors.New("ARTIFACT_DEST is s3 but ARTIFACT_BUCKET is not set")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ArtifactRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return &s3Artifacts{client: s3.NewFromConfig(awsCfg), bucket: cfg.ArtifactBucket}, nil
	}

	baseDir := cfg.ArtifactDir
	if baseDir == "" {
		baseDir = "./artifacts"
	}
	return &localArtifacts{baseDir: baseDir}, nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

type localArtifacts struct {
	baseDir string
}

func (l *localArtifacts) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, sanitizeKey(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return key, nil
}

func (l *localArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(filepath.Join(l.baseDir, sanitizeKey(key)))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return body, nil
}

type s3Artifacts struct {
	client *s3.Client
	bucket string
}

func (s *s3Artifacts) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	key = sanitizeKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (s *s3Artifacts) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sanitizeKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return body, nil
}
