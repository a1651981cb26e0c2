package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/phuslu/log"
)

// Client posts job-completion notifications to the user-notification
// service. Delivery is fire-and-forget: failures are logged, never
// propagated, and a missing base URL disables the client entirely.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a notification client. An empty baseURL yields a disabled
// client whose calls are no-ops.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type jobNotification struct {
	JobID   string `json:"job_id"`
	JobType string `json:"job_type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// JobFinished reports a terminal job state to the notification service.
func (c *Client) JobFinished(ctx context.Context, jobID, jobType, status, message string) {
	if c == nil || c.baseURL == "" {
		return
	}
	body, err := json.Marshal(jobNotification{JobID: jobID, JobType: jobType, Status: status, Message: message})
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("marshal notification")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications/jobs", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("notification dispatch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Str("job_id", jobID).Int("status", resp.StatusCode).Msg("notification rejected")
	}
}
