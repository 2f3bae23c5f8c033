package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/config"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
	"github.com/kirillkom/statute-analyzer/internal/core/usecase"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/cache/memory"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/cache/redis"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/statute-analyzer/internal/observability/metrics"
)

const serviceName = "api"

type App struct {
	Config config.Config
	Logger *slog.Logger

	Embeddings *usecase.EmbeddingService
	CompareUC  *usecase.CompareUseCase
	ConflictUC *usecase.ConflictUseCase
	CorpusUC   *usecase.CorpusUseCase

	HTTPMetrics *metrics.HTTPServerMetrics
	Progress    *nats.ProgressPublisher

	closers []func()
}

// corpusStore is what both vector backends provide.
type corpusStore interface {
	ports.CorpusSearcher
	ports.CorpusIndexer
	ports.CorpusStats
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	scoring, err := config.LoadScoring(cfg.ScoringConfigPath)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.Config{
		Retry:          cfg.RetryPolicy(),
		BreakerEnabled: cfg.BreakerEnabled,
	}, logger)

	provider, explainer, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}

	store, err := app.newCorpusStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.HTTPMetrics = metrics.NewHTTPServerMetrics(serviceName)
	pipeline := metrics.NewPipelineMetrics(app.HTTPMetrics.Registry(), serviceName)

	local := memory.New(memory.Options{
		Capacity:      cfg.EmbedCacheCapacity,
		TTL:           time.Duration(cfg.EmbedCacheTTLSeconds) * time.Second,
		EvictFraction: cfg.EmbedCacheEvictFraction,
	})
	metrics.RegisterCacheStats(app.HTTPMetrics.Registry(), serviceName, local.Stats)

	embeddings := usecase.NewEmbeddingService(provider, local, executor, usecase.EmbeddingConfig{
		BatchSize:      cfg.EmbedBatchSize,
		MaxChars:       cfg.EmbedMaxChars,
		ItemsPerSecond: cfg.EmbedRateItemsPerSecond,
	}, logger).WithObserver(pipeline)

	if cfg.RedisAddr != "" {
		shared, err := redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.RedisTTLSeconds) * time.Second,
		})
		if err != nil {
			// The shared tier is optional; the local cache still serves.
			logger.Warn("redis cache unavailable, continuing without shared tier", "addr", cfg.RedisAddr, "error", err)
		} else {
			embeddings.WithSharedCache(shared)
			app.closers = append(app.closers, func() { _ = shared.Close() })
		}
	}

	if cfg.NATSURL != "" {
		progress, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSProgressSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init progress publisher: %w", err)
		}
		embeddings.WithProgressReporter(progress)
		app.Progress = progress
		app.closers = append(app.closers, progress.Close)
	}

	app.Embeddings = embeddings
	app.CompareUC = usecase.NewCompareUseCase(embeddings, explainer, executor, scoring, cfg.CompareDefaults(), logger).
		WithObserver(pipeline)
	app.ConflictUC = usecase.NewConflictUseCase(embeddings, store, store, explainer, executor, scoring, cfg.DetectDefaults(), logger).
		WithObserver(pipeline)
	app.CorpusUC = usecase.NewCorpusUseCase(embeddings, store, executor, logger)

	logger.Info("application wired",
		"embed_provider", cfg.EmbedProvider,
		"embed_model", provider.ModelID(),
		"vector_backend", cfg.VectorBackend,
		"shared_cache", cfg.RedisAddr != "",
		"progress", cfg.NATSURL != "",
		"explanations", explainer != nil,
	)
	return app, nil
}

func newLLM(cfg config.Config) (ports.EmbeddingProvider, ports.ExplanationGenerator, error) {
	var (
		provider  ports.EmbeddingProvider
		explainer ports.ExplanationGenerator
	)
	switch cfg.EmbedProvider {
	case "ollama", "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
		provider = ollama.NewEmbedder(client, 0)
		if cfg.ExplanationsEnabled {
			explainer = ollama.NewExplainer(client)
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		client := openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
		provider = openai.NewEmbedder(client, cfg.OpenAIEmbedModel, 0)
		if cfg.ExplanationsEnabled {
			explainer = openai.NewExplainer(client, cfg.OpenAIGenModel)
		}
	default:
		return nil, nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
	return provider, explainer, nil
}

func (a *App) newCorpusStore(ctx context.Context, cfg config.Config) (corpusStore, error) {
	switch cfg.VectorBackend {
	case "qdrant", "":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	case "pgvector":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewCorpusRepository(db, cfg.VectorDimensions)
		if err := ensureSchema(ctx, db, repo); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func ensureSchema(ctx context.Context, db *sql.DB, repo *postgres.CorpusRepository) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
