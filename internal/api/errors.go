package api

import (
	"errors"
	"net/http"

	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptySourceURL),
		errors.Is(err, domain.ErrInvalidSourceURL),
		errors.Is(err, domain.ErrInvalidWebhookURL):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the error.
func GetSafeErrorMessage(err error) string {
	switch {
	case store.IsNotFoundError(err):
		return "task not found"
	case errors.Is(err, store.ErrDuplicate):
		return "task already exists"
	case errors.Is(err, domain.ErrEmptySourceURL):
		return "url is required"
	case errors.Is(err, domain.ErrInvalidSourceURL):
		return "url must be an absolute http or https URL"
	case errors.Is(err, domain.ErrInvalidWebhookURL):
		return "webhook_url must be an absolute http or https URL"
	case errors.Is(err, store.ErrInvalidEntity):
		return "invalid request"
	default:
		return "internal server error"
	}
}
