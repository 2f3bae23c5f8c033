package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/resilience"
)

// ProgressPublisher broadcasts embedding progress on <subject>.<job id>.
type ProgressPublisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*ProgressPublisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*ProgressPublisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("statute-analyzer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransientRemote, "connect nats", err)
	}
	return &ProgressPublisher{
		conn:     conn,
		subject:  strings.TrimSuffix(subject, "."),
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (p *ProgressPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Report publishes one progress event. It satisfies ports.ProgressReporter.
func (p *ProgressPublisher) Report(ctx context.Context, progress domain.EmbeddingProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	subject := progressSubject(p.subject, progress.JobID)
	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapPublishError(err)
}

// Subscribe delivers progress events for jobID, or for every job when jobID
// is empty, until ctx is done.
func (p *ProgressPublisher) Subscribe(ctx context.Context, jobID string, handler func(domain.EmbeddingProgress)) error {
	subject := p.subject + ".>"
	if jobID != "" {
		subject = progressSubject(p.subject, jobID)
	}
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		var progress domain.EmbeddingProgress
		if err := json.Unmarshal(msg.Data, &progress); err != nil {
			p.logger.Warn("discarding malformed progress event", "subject", msg.Subject, "error", err)
			return
		}
		handler(progress)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return wrapPublishError(fmt.Errorf("nats flush: %w", err))
	}

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}

func progressSubject(prefix, jobID string) string {
	token := sanitizeToken(jobID)
	if token == "" {
		token = "anonymous"
	}
	return prefix + "." + token
}

// sanitizeToken keeps a job id usable as a single subject token.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
