// Package notify implements best-effort webhook delivery of final task state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/metrics"
	"github.com/rehostd/rehostd/internal/platform/logger"
)

// Payload is the JSON body delivered to the callback endpoint.
type Payload struct {
	Success     bool           `json:"success"`
	TaskID      string         `json:"task_id"`
	Status      string         `json:"status"`
	Result      *domain.Result `json:"result,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// Notifier delivers final task state to a caller-supplied endpoint.
type Notifier interface {
	// Notify sends the task's final state to its webhook URL, if any.
	// Delivery is fire-and-continue: the returned error is informational and
	// callers must not let it affect task state.
	Notify(ctx context.Context, task *domain.Task) error
}

// WebhookNotifier posts JSON payloads with a small fixed number of immediate
// retries. It is invoked strictly after the store transition commits, so a
// crash between commit and delivery costs only the notification, never the
// task's correctness.
type WebhookNotifier struct {
	client      *http.Client
	maxAttempts int
	retryPause  time.Duration
}

// Config tunes the WebhookNotifier.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(cfg Config) *WebhookNotifier {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &WebhookNotifier{
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: attempts,
		retryPause:  time.Second,
	}
}

// Notify delivers the task's final state to its webhook URL.
func (n *WebhookNotifier) Notify(ctx context.Context, task *domain.Task) error {
	if task.WebhookURL == "" {
		return nil
	}

	log := logger.FromContext(ctx).With("task_id", task.ID, "webhook_url", task.WebhookURL)

	payload := Payload{
		Success:     task.Status == domain.TaskStatusCompleted,
		TaskID:      task.ID.String(),
		Status:      string(task.Status),
		Result:      task.Result,
		ErrorDetail: task.ErrorDetail,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		lastErr = n.post(ctx, task.WebhookURL, body)
		if lastErr == nil {
			log.Info("webhook delivered", "attempt", attempt)
			metrics.Notifications.WithLabelValues("delivered").Inc()
			return nil
		}

		log.Warn("webhook delivery failed",
			"attempt", attempt,
			"max_attempts", n.maxAttempts,
			"error", lastErr)

		if attempt < n.maxAttempts {
			select {
			case <-time.After(n.retryPause):
			case <-ctx.Done():
			}
		}
	}

	metrics.Notifications.WithLabelValues("failed").Inc()
	return fmt.Errorf("webhook delivery exhausted after %d attempts: %w", n.maxAttempts, lastErr)
}

// post sends one delivery attempt.
func (n *WebhookNotifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}

	return nil
}
