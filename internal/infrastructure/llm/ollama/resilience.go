package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// classifyOllamaError attaches a domain error kind to a raw client failure.
func classifyOllamaError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return domain.WrapError(domain.ErrTransientRemote, operation, err)
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapTerminal(domain.ErrAuthRejected, operation, err)
		case statusErr.StatusCode == http.StatusPaymentRequired:
			return domain.WrapTerminal(domain.ErrQuotaExhausted, operation, err)
		case statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity:
			return domain.WrapTerminal(domain.ErrContentRejected, operation, err)
		default:
			return domain.WrapTerminal(nil, operation, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransientRemote, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
