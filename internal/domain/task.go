package domain

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status is one of the terminal states.
// A task never leaves completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Common validation errors for Task
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptySourceURL      = errors.New("task source URL cannot be empty")
	ErrInvalidSourceURL    = errors.New("task source URL is not a valid absolute URL")
	ErrInvalidWebhookURL   = errors.New("task webhook URL is not a valid absolute URL")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrResultErrorConflict = errors.New("task cannot carry both a result and an error detail")
)

// Task represents one unit of fetch-and-re-host work. It is persisted as a
// single row in the tasks table, which is the sole source of truth for its
// state; workers never cache task state across polls.
type Task struct {
	ID         uuid.UUID `json:"id"`
	SourceURL  string    `json:"source_url"`
	WebhookURL string    `json:"webhook_url,omitempty"`

	// MetadataOnly skips the content download: the task produces and
	// re-hosts only the metadata artifact describing the source.
	MetadataOnly bool `json:"metadata_only"`

	Status       TaskStatus `json:"status"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
	Result       *Result    `json:"result,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	RunAfter     time.Time  `json:"run_after"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTask creates a new Task for the given source URL, optionally carrying a
// webhook URL for completion notification. The task starts in the queued
// state with an attempt count of zero and is immediately eligible for claim.
// Returns an error if validation fails.
func NewTask(sourceURL, webhookURL string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:         uuid.New(),
		SourceURL:  sourceURL,
		WebhookURL: webhookURL,
		Status:     TaskStatusQueued,
		RunAfter:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.SourceURL == "" {
		return ErrEmptySourceURL
	}

	if !isAbsoluteURL(t.SourceURL) {
		return ErrInvalidSourceURL
	}

	if t.WebhookURL != "" && !isAbsoluteURL(t.WebhookURL) {
		return ErrInvalidWebhookURL
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	// Result and error detail are mutually exclusive at any point in time.
	if t.Result != nil && t.ErrorDetail != "" {
		return ErrResultErrorConflict
	}

	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// isAbsoluteURL reports whether raw parses as an absolute http(s) URL.
func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
