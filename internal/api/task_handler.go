package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rehostd/rehostd/internal/api/shared"
	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/store"
)

// TaskHandler serves the task submission and status endpoints. It only
// creates and reads tasks; every other mutation belongs to the workers.
type TaskHandler struct {
	tasks  store.TaskStore
	logger *slog.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(tasks store.TaskStore, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// CreateTask handles POST /api/tasks. A valid submission is acknowledged
// with 202 Accepted: the task is durably queued, not yet processed.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "url must be an absolute http or https URL")
		return
	}

	task, err := domain.NewTask(req.URL, req.WebhookURL)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	task.MetadataOnly = req.MetadataOnly

	if err := h.tasks.Create(r.Context(), task); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("task accepted",
		"task_id", task.ID,
		"source_url", task.SourceURL,
		"trace_id", shared.GetTraceID(r.Context()))

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateTaskResponse{
		TaskID: task.ID,
		Status: string(task.Status),
	})
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid task ID")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(task))
}
