package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// ClassifyRemote maps domain error kinds produced by remote adapters onto
// retry and breaker decisions. Terminal errors are never retried and do not
// count against the breaker.
func ClassifyRemote(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrTerminalRemote):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case errors.Is(err, domain.ErrTransientRemote):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
