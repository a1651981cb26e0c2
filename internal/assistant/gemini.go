package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"scholar-project-service/internal/config"
	"scholar-project-service/internal/telemetry"
)

// Generator is the minimal contract the service needs from the
// generative-language API: one prompt in, free text out, bounded by a
// timeout.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient initializes a Gemini-backed generator from config.
func NewGeminiClient(ctx context.Context, cfg config.Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the assistant")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.GeminiTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Generate runs one synchronous completion with the configured timeout.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		telemetry.AssistantRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		telemetry.AssistantRequests.WithLabelValues("empty").Inc()
		return "", errors.New("empty completion")
	}
	telemetry.AssistantRequests.WithLabelValues("ok").Inc()
	return text, nil
}
