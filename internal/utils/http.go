package utils

import (
	"context"
	"errors"
	"net/http"

	"github.com/aristath/stockselect/internal/domain"
)

// StatusForError maps the domain error classes onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrInsufficientCandidates),
		errors.Is(err, domain.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOptimizationFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
