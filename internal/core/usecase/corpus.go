package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
)

// CorpusUseCase embeds the clauses of an enacted instrument and stores them
// in the searchable corpus.
type CorpusUseCase struct {
	embeddings *EmbeddingService
	indexer    ports.CorpusIndexer
	caller     ports.RemoteCaller
	logger     *slog.Logger
}

func NewCorpusUseCase(embeddings *EmbeddingService, indexer ports.CorpusIndexer, caller ports.RemoteCaller, logger *slog.Logger) *CorpusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusUseCase{
		embeddings: embeddings,
		indexer:    indexer,
		caller:     caller,
		logger:     logger,
	}
}

// IndexDocument returns the number of clauses indexed. A document is indexed
// whole or not at all.
func (uc *CorpusUseCase) IndexDocument(ctx context.Context, doc domain.CorpusDocument, clauses []domain.ClauseSegment) (int, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return 0, domain.NewValidationError("index document", "document id is required")
	}
	if strings.TrimSpace(doc.Title) == "" {
		return 0, domain.NewValidationError("index document", "document title is required")
	}
	if len(clauses) == 0 {
		return 0, domain.NewValidationError("index document", "no clauses supplied")
	}
	if doc.Jurisdiction == "" {
		doc.Jurisdiction = domain.JurisdictionNational
	}
	if doc.Status == "" {
		doc.Status = domain.StatusActive
	}

	texts := make([]string, len(clauses))
	for i, c := range clauses {
		if strings.TrimSpace(c.Text) == "" {
			return 0, &domain.OperationError{
				Kind:        domain.ErrValidation,
				Operation:   "index document",
				ClauseIndex: i,
				Err:         errEmptyClause,
			}
		}
		texts[i] = c.Text
	}

	results, err := uc.embeddings.EmbedBatch(ctx, texts, WithJobID("index-"+doc.ID))
	if err != nil {
		return 0, err
	}
	vectors := make([][]float32, len(results))
	var failed []error
	for i, r := range results {
		if !r.OK() {
			failed = append(failed, r.Err)
			continue
		}
		vectors[i] = r.Vector.Values
	}
	if len(failed) > 0 {
		return 0, jobFailure("index document", errors.Join(failed...))
	}

	err = uc.caller.Call(ctx, "corpus.index", nil, func(ctx context.Context) error {
		return uc.indexer.IndexClauses(ctx, doc, clauses, vectors)
	})
	if err != nil {
		return 0, err
	}
	uc.logger.Info("corpus document indexed",
		"document_id", doc.ID,
		"clauses", len(clauses),
		"model", uc.embeddings.ModelID(),
	)
	return len(clauses), nil
}
