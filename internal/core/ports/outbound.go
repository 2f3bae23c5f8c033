package ports

import (
	"context"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// EmbeddingProvider turns texts into vectors in one remote call.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) (domain.ProviderBatch, error)
	ModelID() string
	MaxBatchSize() int
}

// VectorCache stores vectors keyed by content hash.
type VectorCache interface {
	Get(ctx context.Context, key string) (domain.EmbeddingVector, bool, error)
	Put(ctx context.Context, key string, vec domain.EmbeddingVector) error
	Clear(ctx context.Context) error
}

// CorpusSearcher runs a filtered similarity search over indexed legislation.
type CorpusSearcher interface {
	SearchSimilar(ctx context.Context, vector []float32, query domain.CorpusQuery) ([]domain.CorpusMatch, error)
}

// CorpusIndexer stores clause vectors of a corpus document.
type CorpusIndexer interface {
	IndexClauses(ctx context.Context, doc domain.CorpusDocument, clauses []domain.ClauseSegment, vectors [][]float32) error
}

// CorpusStats reports the size of the indexed corpus.
type CorpusStats interface {
	CountDocuments(ctx context.Context) (int, error)
}

// ExplanationGenerator enriches changes and conflicts with generated prose.
type ExplanationGenerator interface {
	ExplainChange(ctx context.Context, diff domain.DocumentDiff) (domain.ChangeExplanation, error)
	ExplainConflict(ctx context.Context, clause domain.ClauseSegment, match domain.CorpusMatch, kind domain.ConflictType) (domain.ConflictExplanation, error)
}

// ProgressReporter receives embedding progress after every remote group.
type ProgressReporter interface {
	Report(ctx context.Context, progress domain.EmbeddingProgress) error
}

// PipelineObserver receives pipeline measurements.
type PipelineObserver interface {
	ObserveEmbeddingLookup(hit bool)
	ObserveEmbeddingCall(outcome string, items int, duration time.Duration)
	ObserveComparison(outcome string, changes int, duration time.Duration)
	ObserveDetection(outcome string, flags int, duration time.Duration)
}

// NopObserver discards every observation.
type NopObserver struct{}

func (NopObserver) ObserveEmbeddingLookup(bool)                     {}
func (NopObserver) ObserveEmbeddingCall(string, int, time.Duration) {}
func (NopObserver) ObserveComparison(string, int, time.Duration)    {}
func (NopObserver) ObserveDetection(string, int, time.Duration)     {}

// RemoteCaller runs a fallible remote call under a retry policy. A nil
// policy selects the caller's default.
type RemoteCaller interface {
	Call(ctx context.Context, operation string, policy *domain.RetryPolicy, fn func(context.Context) error) error
}
