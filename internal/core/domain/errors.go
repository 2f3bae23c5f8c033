package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrTransientRemote = errors.New("transient remote error")
	ErrTerminalRemote  = errors.New("terminal remote error")
	ErrPartialFailure  = errors.New("partial failure")
	ErrJobFailed       = errors.New("job failed")
	ErrUnauthorized    = errors.New("unauthorized")

	// Reasons attached next to ErrTerminalRemote.
	ErrAuthRejected    = errors.New("credentials rejected")
	ErrQuotaExhausted  = errors.New("quota exhausted")
	ErrContentRejected = errors.New("content rejected")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// WrapTerminal marks err as a terminal remote failure with the given reason.
func WrapTerminal(reason error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if reason == nil {
		return WrapError(ErrTerminalRemote, operation, err)
	}
	return fmt.Errorf("%s: %w: %w: %w", operation, ErrTerminalRemote, reason, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsFailFast reports errors after which no further remote call can succeed.
func IsFailFast(err error) bool {
	return errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrQuotaExhausted)
}

// NewValidationError builds an ErrValidation with a formatted message.
func NewValidationError(operation, format string, args ...any) error {
	return WrapError(ErrValidation, operation, fmt.Errorf(format, args...))
}

// OperationError carries diagnosis context for a failed step of a job.
// ClauseIndex is -1 when the failure is not tied to a single clause.
type OperationError struct {
	Kind        error
	Operation   string
	ClauseIndex int
	Attempts    int
	Err         error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "operation error"
	}
	var b strings.Builder
	b.WriteString(e.Operation)
	if e.ClauseIndex >= 0 {
		fmt.Fprintf(&b, " [clause %d]", e.ClauseIndex)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// AttemptsOf returns the attempt count recorded anywhere in err's chain.
func AttemptsOf(err error) int {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Attempts
	}
	var counted interface{ AttemptCount() int }
	if errors.As(err, &counted) {
		return counted.AttemptCount()
	}
	return 0
}
