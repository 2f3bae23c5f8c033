package ports

import (
	"context"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// DocumentComparer is the inbound contract for version-to-version clause diffs.
type DocumentComparer interface {
	Compare(ctx context.Context, oldClauses, newClauses []domain.ClauseSegment, opts domain.CompareOptions) (*domain.DocumentComparisonResult, error)
}

// ConflictDetector is the inbound contract for corpus conflict detection.
type ConflictDetector interface {
	DetectConflicts(ctx context.Context, clauses []domain.ClauseSegment, excludeDocumentID string, opts domain.DetectOptions) (*domain.ConflictDetectionResult, error)
}

// CorpusLoader is the inbound contract for building the searchable corpus.
type CorpusLoader interface {
	IndexDocument(ctx context.Context, doc domain.CorpusDocument, clauses []domain.ClauseSegment) (int, error)
}
