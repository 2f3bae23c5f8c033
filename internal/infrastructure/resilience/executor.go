package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// AttemptError reports the number of attempts spent on a failed call.
type AttemptError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

func (e *AttemptError) AttemptCount() int { return e.Attempts }

type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Policy returns the default retry policy of the executor.
func (e *Executor) Policy() Policy {
	return e.cfg.Retry
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	return e.ExecuteWith(ctx, operation, e.cfg.Retry, fn, classifier)
}

// ExecuteWith runs fn with an explicit retry policy override.
func (e *Executor) ExecuteWith(
	ctx context.Context,
	operation string,
	policy Policy,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	policy = normalizePolicy(policy)

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, policy, fn, classifier)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, policy, fn, classifier)
	})
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	policy Policy,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	delays := schedule(policy)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		class := classifier(err)
		if !class.Retryable {
			return err
		}
		if attempt >= policy.MaxAttempts {
			return &AttemptError{Operation: operation, Attempts: attempt, Err: err}
		}

		wait := delays.NextBackOff()
		if wait > policy.MaxBackoff {
			wait = policy.MaxBackoff
		}
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &AttemptError{Operation: operation, Attempts: attempt, Err: err}
			case <-timer.C:
			}
		}
	}
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			class := classifier(err)
			return !class.RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// Call runs fn under ClassifyRemote. A nil policy uses the executor default.
func (e *Executor) Call(ctx context.Context, operation string, policy *domain.RetryPolicy, fn func(context.Context) error) error {
	p := e.cfg.Retry
	if policy != nil {
		p = *policy
	}
	return e.ExecuteWith(ctx, operation, p, fn, ClassifyRemote)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
