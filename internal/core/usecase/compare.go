package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
)

var errEmptyClause = errors.New("clause text is empty")

func DefaultCompareSettings() domain.CompareSettings {
	return domain.CompareSettings{
		SemanticThreshold:      0.70,
		EnableSemanticAnalysis: true,
		BatchSize:              defaultEmbedBatchSize,
		Timeout:                2 * time.Minute,
	}
}

// CompareUseCase aligns two clause-segmented versions of a document and
// reports graded changes.
type CompareUseCase struct {
	embeddings *EmbeddingService
	explainer  ports.ExplanationGenerator
	caller     ports.RemoteCaller
	scoring    domain.ScoringConfig
	defaults   domain.CompareSettings
	observer   ports.PipelineObserver
	logger     *slog.Logger
	now        func() time.Time
}

func NewCompareUseCase(
	embeddings *EmbeddingService,
	explainer ports.ExplanationGenerator,
	caller ports.RemoteCaller,
	scoring domain.ScoringConfig,
	defaults domain.CompareSettings,
	logger *slog.Logger,
) *CompareUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareUseCase{
		embeddings: embeddings,
		explainer:  explainer,
		caller:     caller,
		scoring:    scoring.Merge(domain.DefaultScoringConfig()),
		defaults:   defaults,
		observer:   ports.NopObserver{},
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *CompareUseCase) WithObserver(o ports.PipelineObserver) *CompareUseCase {
	if o != nil {
		uc.observer = o
	}
	return uc
}

func (uc *CompareUseCase) Compare(
	ctx context.Context,
	oldClauses, newClauses []domain.ClauseSegment,
	opts domain.CompareOptions,
) (*domain.DocumentComparisonResult, error) {
	started := uc.now()
	result, err := uc.compare(ctx, oldClauses, newClauses, opts.Resolve(uc.defaults), started)
	outcome, changes := "success", 0
	if err != nil {
		outcome = "error"
	} else {
		changes = len(result.Changes)
	}
	uc.observer.ObserveComparison(outcome, changes, time.Since(started))
	return result, err
}

func (uc *CompareUseCase) compare(
	ctx context.Context,
	oldClauses, newClauses []domain.ClauseSegment,
	settings domain.CompareSettings,
	started time.Time,
) (*domain.DocumentComparisonResult, error) {
	if settings.SemanticThreshold < 0 || settings.SemanticThreshold > 1 {
		return nil, domain.NewValidationError("compare", "semantic_threshold must be within [0,1], got %v", settings.SemanticThreshold)
	}
	if len(oldClauses) == 0 && len(newClauses) == 0 {
		return nil, domain.NewValidationError("compare", "both clause lists are empty")
	}
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	oldSide, err := prepareClauses("old", oldClauses)
	if err != nil {
		return nil, err
	}
	newSide, err := prepareClauses("new", newClauses)
	if err != nil {
		return nil, err
	}

	meta := domain.ComparisonMetadata{
		SemanticEnabled:   settings.EnableSemanticAnalysis && uc.embeddings != nil,
		SemanticThreshold: settings.SemanticThreshold,
	}
	if meta.SemanticEnabled && len(oldSide) > 0 && len(newSide) > 0 {
		if err := uc.attachVectors(ctx, oldSide, newSide, settings, &meta); err != nil {
			return nil, err
		}
	}

	cfg := uc.scoring.Alignment
	aligned := align(oldSide, newSide, settings.SemanticThreshold, cfg)
	if aligned.degradedPairs > 0 {
		meta.Warnings = append(meta.Warnings,
			fmt.Sprintf("%d clause pair(s) scored on text similarity only", aligned.degradedPairs))
	}

	ranked := make([]rankedDiff, 0, len(oldSide)+len(newSide))
	unchanged := 0
	for _, m := range aligned.mappings {
		if m.Class == domain.MappingExact {
			unchanged++
			continue
		}
		kind := domain.ChangeModified
		if m.Class == domain.MappingMoved {
			kind = domain.ChangeMoved
		}
		sim := m.Score
		oldText, newText := m.Old.Text, m.New.Text
		ranked = append(ranked, rankedDiff{
			oldOrder: m.Old.Order,
			diff: domain.DocumentDiff{
				Kind:         kind,
				OldText:      &oldText,
				NewText:      &newText,
				OldReference: m.Old.Reference,
				NewReference: m.New.Reference,
				ClauseType:   m.New.Type,
				Similarity:   &sim,
				Significance: significance(kind, m.New.Type, sim, uc.scoring.Significance),
				Position:     m.New.Order,
				Context:      clauseContext(m.New),
			},
		})
	}
	for _, o := range aligned.unmatchedOld {
		text := o.seg.Text
		ranked = append(ranked, rankedDiff{
			oldOrder: o.seg.Order,
			diff: domain.DocumentDiff{
				Kind:         domain.ChangeDeleted,
				OldText:      &text,
				OldReference: o.seg.Reference,
				ClauseType:   o.seg.Type,
				Significance: significance(domain.ChangeDeleted, o.seg.Type, 0, uc.scoring.Significance),
				Position:     o.seg.Order,
				Context:      clauseContext(o.seg),
			},
		})
	}
	for _, n := range aligned.unmatchedNew {
		text := n.seg.Text
		ranked = append(ranked, rankedDiff{
			oldOrder: -1,
			diff: domain.DocumentDiff{
				Kind:         domain.ChangeAdded,
				NewText:      &text,
				NewReference: n.seg.Reference,
				ClauseType:   n.seg.Type,
				Significance: significance(domain.ChangeAdded, n.seg.Type, 0, uc.scoring.Significance),
				Position:     n.seg.Order,
				Context:      clauseContext(n.seg),
			},
		})
	}
	diffs := sortDiffs(ranked)

	if settings.IncludeAIExplanations {
		if err := uc.explain(ctx, diffs); err != nil {
			return nil, err
		}
	}

	stats := diffStatistics(diffs, unchanged, len(oldSide), len(newSide))
	meta.ElapsedMS = time.Since(started).Milliseconds()
	meta.Timestamp = started.UTC()
	return &domain.DocumentComparisonResult{
		Changes:    diffs,
		Statistics: stats,
		Summary:    comparisonSummary(stats),
		Verdict:    comparisonVerdict(stats),
		Metadata:   meta,
	}, nil
}

// attachVectors embeds both sides in one batch. Embedding failures degrade
// the affected clauses to text-only scoring; only timeouts fail the job.
func (uc *CompareUseCase) attachVectors(
	ctx context.Context,
	oldSide, newSide []alignedClause,
	settings domain.CompareSettings,
	meta *domain.ComparisonMetadata,
) error {
	texts := make([]string, 0, len(oldSide)+len(newSide))
	for _, c := range oldSide {
		texts = append(texts, c.seg.Text)
	}
	for _, c := range newSide {
		texts = append(texts, c.seg.Text)
	}

	meta.EmbeddingModel = uc.embeddings.ModelID()
	results, err := uc.embeddings.EmbedBatch(ctx, texts,
		WithJobID("compare-"+uuid.NewString()),
		WithGroupSize(settings.BatchSize),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobFailure("compare", ctxErr)
		}
		uc.logger.Warn("semantic analysis unavailable, using text similarity", "error", err)
		meta.SemanticDegraded = true
		meta.Warnings = append(meta.Warnings, "semantic analysis unavailable: "+err.Error())
		return nil
	}

	failed := 0
	for i := range results {
		r := results[i]
		if !r.OK() {
			failed++
			continue
		}
		if r.Vector.Cached {
			meta.CacheHits++
		}
		vec := r.Vector
		if i < len(oldSide) {
			oldSide[i].vec = &vec
		} else {
			newSide[i-len(oldSide)].vec = &vec
		}
	}
	if failed > 0 {
		meta.SemanticDegraded = true
		meta.Warnings = append(meta.Warnings, fmt.Sprintf("%d clause(s) could not be embedded", failed))
	}
	return nil
}

// explain fills templated explanations and, when a generator is configured,
// enriches them. Generator failures keep the templated text.
func (uc *CompareUseCase) explain(ctx context.Context, diffs []domain.DocumentDiff) error {
	for i := range diffs {
		diffs[i].Explanation = templateExplanation(diffs[i], uc.scoring.Alignment)
		if uc.explainer == nil || uc.caller == nil {
			continue
		}
		var out domain.ChangeExplanation
		err := uc.caller.Call(ctx, "explain", nil, func(ctx context.Context) error {
			var err error
			out, err = uc.explainer.ExplainChange(ctx, diffs[i])
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return jobFailure("compare explain", ctxErr)
			}
			uc.logger.Warn("change explanation failed, using template",
				"reference", diffs[i].Reference(),
				"error", err,
			)
			continue
		}
		diffs[i].Explanation = out.Explanation
		diffs[i].LegalImplication = out.LegalImplication
	}
	return nil
}

func clauseContext(c domain.ClauseSegment) string {
	if c.Pages == nil {
		return ""
	}
	if c.Pages.Start == c.Pages.End {
		return fmt.Sprintf("page %d", c.Pages.Start)
	}
	return fmt.Sprintf("pages %d-%d", c.Pages.Start, c.Pages.End)
}
