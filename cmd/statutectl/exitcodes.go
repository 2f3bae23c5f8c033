package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const (
	ExitSuccess     = 0
	ExitError       = 1 // runtime failure
	ExitConfigError = 2 // configuration or wiring failure
	ExitDataError   = 3 // malformed input or validation failure
	ExitRemoteError = 4 // embedding provider, corpus or broker failure
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		reportError(ee.err)
		return ee.code
	}
	reportError(err)
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return ExitDataError
	case domain.IsKind(err, domain.ErrJobFailed),
		domain.IsKind(err, domain.ErrTransientRemote),
		domain.IsKind(err, domain.ErrTerminalRemote):
		return ExitRemoteError
	default:
		return ExitError
	}
}

func reportError(err error) {
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	_ = outputJSONTo(os.Stderr, ErrorResponse{Error: err.Error(), Attempts: domain.AttemptsOf(err)})
}

func dataError(format string, args ...any) error {
	return &exitError{code: ExitDataError, err: fmt.Errorf(format, args...)}
}
