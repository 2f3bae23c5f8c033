package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case resilience.IsCircuitOpen(err), domain.IsKind(err, domain.ErrTransientRemote):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTerminalRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Operation   string `json:"operation,omitempty"`
	ClauseIndex *int   `json:"clause_index,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func errorBody(r *http.Request, err error) errorResponse {
	body := errorResponse{
		Error:     err.Error(),
		Kind:      errorKind(err),
		Attempts:  domain.AttemptsOf(err),
		RequestID: requestIDFromContext(r.Context()),
	}
	var opErr *domain.OperationError
	if errors.As(err, &opErr) {
		body.Operation = opErr.Operation
		if opErr.ClauseIndex >= 0 {
			idx := opErr.ClauseIndex
			body.ClauseIndex = &idx
		}
	}
	return body
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return "validation"
	case domain.IsKind(err, domain.ErrJobFailed):
		return "job_failed"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "unauthorized"
	case domain.IsKind(err, domain.ErrTransientRemote):
		return "transient_remote"
	case domain.IsKind(err, domain.ErrTerminalRemote):
		return "terminal_remote"
	default:
		return ""
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"operation", op,
			"request_id", requestIDFromContext(r.Context()),
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody(r, err))
}
