package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// errorResponse is the JSON error envelope returned by every endpoint.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeErrorMessage writes the error envelope for a request rejected before
// reaching the service layer (malformed body, bad UUID, failed validation).
func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeServiceError maps a domain error to its HTTP representation.
// The order matters: ErrStaleVersion is checked before the generic 500 even
// though the service retries it away, so an exhausted retry budget still
// surfaces as retryable.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", unwrapMessage(err))
	case errors.Is(err, domain.ErrValidation):
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
	case errors.Is(err, domain.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, "conflict", unwrapMessage(err))
	case errors.Is(err, domain.ErrInvalidTransition):
		writeErrorMessage(w, http.StatusConflict, "invalid_transition", unwrapMessage(err))
	case errors.Is(err, domain.ErrLockTimeout), errors.Is(err, domain.ErrStaleVersion):
		w.Header().Set("Retry-After", "1")
		writeErrorMessage(w, http.StatusServiceUnavailable, "lock_timeout", "listing is busy, retry shortly")
	default:
		slog.ErrorContext(r.Context(), "unhandled service error", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// unwrapMessage strips the operation prefixes services add while wrapping
// (e.g. "service.BookingService.Create: validation error: ...") so clients
// see only the human-readable tail.
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for {
		head, tail, ok := strings.Cut(msg, ": ")
		if !ok {
			return msg
		}
		if strings.HasPrefix(head, "service.") || strings.HasPrefix(head, "repo.") || head == "validation error" {
			msg = tail
			continue
		}
		return msg
	}
}
