package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/rehostd/rehostd/internal/domain"
)

// CreateTaskRequest is the payload for submitting a new rehost task.
type CreateTaskRequest struct {
	URL          string `json:"url"           validate:"required,url"`
	WebhookURL   string `json:"webhook_url"   validate:"omitempty,url"`
	MetadataOnly bool   `json:"metadata_only"`
}

// CreateTaskResponse acknowledges an accepted task.
type CreateTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

// TaskResponse is the full task view returned on status lookups.
type TaskResponse struct {
	ID           uuid.UUID      `json:"id"`
	SourceURL    string         `json:"source_url"`
	WebhookURL   string         `json:"webhook_url,omitempty"`
	MetadataOnly bool           `json:"metadata_only"`
	Status       string         `json:"status"`
	ErrorDetail  string         `json:"error_detail,omitempty"`
	Result       *domain.Result `json:"result,omitempty"`
	AttemptCount int            `json:"attempt_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// newTaskResponse projects a domain task onto the API view.
func newTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		SourceURL:    task.SourceURL,
		WebhookURL:   task.WebhookURL,
		MetadataOnly: task.MetadataOnly,
		Status:       string(task.Status),
		ErrorDetail:  task.ErrorDetail,
		Result:       task.Result,
		AttemptCount: task.AttemptCount,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}
