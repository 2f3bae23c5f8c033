package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func TestProgressSubjectSanitizesJobID(t *testing.T) {
	tests := []struct {
		jobID string
		want  string
	}{
		{"compare-1", "statute.progress.compare-1"},
		{"a.b*c>", "statute.progress.a_b_c_"},
		{"  ", "statute.progress.anonymous"},
	}
	for _, tt := range tests {
		if got := progressSubject("statute.progress", tt.jobID); got != tt.want {
			t.Fatalf("progressSubject(%q) = %q, want %q", tt.jobID, got, tt.want)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrNoServers)); !c.Retryable || !c.RecordFailure {
		t.Fatalf("expected no-servers to be retryable, got %+v", c)
	}
	if c := classifyNATSError(nats.ErrMaxPayload); c.Retryable {
		t.Fatalf("expected max payload to be permanent, got %+v", c)
	}
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("expected canceled to be ignored, got %+v", c)
	}
}

func TestWrapPublishError(t *testing.T) {
	if err := wrapPublishError(nats.ErrConnectionClosed); !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient, got %v", err)
	}
	if err := wrapPublishError(nats.ErrMaxPayload); !errors.Is(err, domain.ErrTerminalRemote) {
		t.Fatalf("expected terminal, got %v", err)
	}
	if err := wrapPublishError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewFailsWithoutServer(t *testing.T) {
	retry := false
	_, err := NewWithOptions("nats://127.0.0.1:1", "statute.progress", Options{
		ConnectTimeout:       200 * time.Millisecond,
		RetryOnFailedConnect: &retry,
	})
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient connect error, got %v", err)
	}
}
