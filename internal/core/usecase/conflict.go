package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
)

const maxExcerptRunes = 300

func DefaultDetectSettings() domain.DetectSettings {
	return domain.DetectSettings{
		SimilarityThreshold:   0.80,
		MaxConflictsPerClause: 5,
		DocumentTypes:         []string{domain.DocumentTypeStatute, domain.DocumentTypeRegulation},
		BatchSize:             defaultEmbedBatchSize,
		Timeout:               2 * time.Minute,
	}
}

// ConflictUseCase checks draft clauses against the indexed corpus of
// existing legislation.
type ConflictUseCase struct {
	embeddings *EmbeddingService
	searcher   ports.CorpusSearcher
	stats      ports.CorpusStats
	explainer  ports.ExplanationGenerator
	caller     ports.RemoteCaller
	scoring    domain.ScoringConfig
	defaults   domain.DetectSettings
	observer   ports.PipelineObserver
	logger     *slog.Logger
	now        func() time.Time
}

func NewConflictUseCase(
	embeddings *EmbeddingService,
	searcher ports.CorpusSearcher,
	stats ports.CorpusStats,
	explainer ports.ExplanationGenerator,
	caller ports.RemoteCaller,
	scoring domain.ScoringConfig,
	defaults domain.DetectSettings,
	logger *slog.Logger,
) *ConflictUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictUseCase{
		embeddings: embeddings,
		searcher:   searcher,
		stats:      stats,
		explainer:  explainer,
		caller:     caller,
		scoring:    scoring.Merge(domain.DefaultScoringConfig()),
		defaults:   defaults,
		observer:   ports.NopObserver{},
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *ConflictUseCase) WithObserver(o ports.PipelineObserver) *ConflictUseCase {
	if o != nil {
		uc.observer = o
	}
	return uc
}

func (uc *ConflictUseCase) DetectConflicts(
	ctx context.Context,
	clauses []domain.ClauseSegment,
	excludeDocumentID string,
	opts domain.DetectOptions,
) (*domain.ConflictDetectionResult, error) {
	started := uc.now()
	result, err := uc.detect(ctx, clauses, excludeDocumentID, opts.Resolve(uc.defaults), started)
	outcome, flags := "success", 0
	if err != nil {
		outcome = "error"
	} else {
		flags = len(result.Flags)
	}
	uc.observer.ObserveDetection(outcome, flags, time.Since(started))
	return result, err
}

type clauseRun struct {
	flags []domain.ConflictFlag
	// matches[i] is the full corpus match behind flags[i].
	matches  []domain.CorpusMatch
	failures []domain.ClauseFailure
	analyzed int
	// searched counts clauses sent to the corpus; outages counts those whose
	// search failed for a reason other than a terminal rejection.
	searched   int
	outages    int
	lastOutage error
}

func (uc *ConflictUseCase) detect(
	ctx context.Context,
	clauses []domain.ClauseSegment,
	excludeDocumentID string,
	settings domain.DetectSettings,
	started time.Time,
) (*domain.ConflictDetectionResult, error) {
	if settings.SimilarityThreshold < 0 || settings.SimilarityThreshold > 1 {
		return nil, domain.NewValidationError("detect conflicts", "similarity_threshold must be within [0,1], got %v", settings.SimilarityThreshold)
	}
	if len(clauses) == 0 {
		return nil, domain.NewValidationError("detect conflicts", "no clauses supplied")
	}
	for i, c := range clauses {
		if strings.TrimSpace(c.Text) == "" {
			return nil, &domain.OperationError{
				Kind:        domain.ErrValidation,
				Operation:   "detect conflicts",
				ClauseIndex: i,
				Err:         errEmptyClause,
			}
		}
	}
	if uc.embeddings == nil || uc.searcher == nil {
		return nil, domain.WrapError(domain.ErrJobFailed, "detect conflicts", errors.New("corpus search is not configured"))
	}
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	query := domain.CorpusQuery{
		Jurisdiction:      settings.JurisdictionFilter,
		DocumentTypes:     settings.DocumentTypes,
		ExcludeDocumentID: excludeDocumentID,
		MinScore:          settings.SimilarityThreshold,
		Limit:             settings.MaxConflictsPerClause,
	}
	jobID := "detect-" + uuid.NewString()
	batch := settings.BatchSize
	if batch <= 0 {
		batch = defaultEmbedBatchSize
	}

	var run clauseRun
	for start := 0; start < len(clauses); start += batch {
		end := min(start+batch, len(clauses))
		if err := uc.detectBatch(ctx, clauses, start, end, query, jobID, &run); err != nil {
			return nil, err
		}
	}
	if run.searched > 0 && run.outages == run.searched {
		return nil, jobFailure("detect conflicts", fmt.Errorf("every corpus search failed: %w", run.lastOutage))
	}

	if settings.IncludeAIExplanations {
		if err := uc.enrich(ctx, clauses, run.flags, run.matches); err != nil {
			return nil, err
		}
	}
	sortFlags(run.flags)

	cfg := uc.scoring.Conflict
	stats := conflictStatistics(run.flags, run.analyzed, len(run.failures))
	risk := overallRisk(run.flags)
	meta := domain.DetectionMetadata{
		CorpusSize:          uc.corpusSize(ctx),
		SimilarityThreshold: settings.SimilarityThreshold,
		JurisdictionFilter:  settings.JurisdictionFilter,
		DocumentTypes:       append([]string(nil), settings.DocumentTypes...),
		EmbeddingModel:      uc.embeddings.ModelID(),
		ElapsedMS:           time.Since(started).Milliseconds(),
		Timestamp:           started.UTC(),
	}
	return &domain.ConflictDetectionResult{
		Flags:           run.flags,
		Statistics:      stats,
		Summary:         conflictSummary(stats, risk),
		Risk:            risk,
		Compatibility:   compatibilityScore(run.flags, cfg.SeverityWeights),
		Recommendations: recommendations(stats, risk),
		Failures:        run.failures,
		Metadata:        meta,
	}, nil
}

// detectBatch embeds and searches clauses[start:end]. A clause whose
// embedding or search fails is recorded and skipped. A batch of two or more
// searches that all hit an outage aborts the job early; a terminal rejection
// of a single query never counts as an outage.
func (uc *ConflictUseCase) detectBatch(
	ctx context.Context,
	clauses []domain.ClauseSegment,
	start, end int,
	query domain.CorpusQuery,
	jobID string,
	run *clauseRun,
) error {
	texts := make([]string, 0, end-start)
	for _, c := range clauses[start:end] {
		texts = append(texts, c.Text)
	}
	results, err := uc.embeddings.EmbedBatch(ctx, texts, WithJobID(jobID), WithGroupSize(end-start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobFailure("detect conflicts", ctxErr)
		}
		return jobFailure("detect conflicts", err)
	}

	searched, outages := 0, 0
	var lastErr error
	for k, r := range results {
		idx := start + k
		clause := clauses[idx]
		if !r.OK() {
			run.failures = append(run.failures, clauseFailure(idx, clause, "embed", r.Err))
			uc.logger.Warn("clause embedding failed, skipping", "clause_index", idx, "error", r.Err)
			continue
		}

		searched++
		run.searched++
		var matches []domain.CorpusMatch
		err := uc.caller.Call(ctx, "corpus.search", nil, func(ctx context.Context) error {
			var err error
			matches, err = uc.searcher.SearchSimilar(ctx, r.Vector.Values, query)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return jobFailure("detect conflicts", ctxErr)
			}
			if isOutage(err) {
				outages++
				run.outages++
				run.lastOutage = err
				lastErr = err
			}
			run.failures = append(run.failures, clauseFailure(idx, clause, "corpus.search", err))
			uc.logger.Warn("corpus search failed, skipping clause", "clause_index", idx, "error", err)
			continue
		}
		run.analyzed++
		flags, kept := uc.flagsFor(idx, clause, matches, query)
		run.flags = append(run.flags, flags...)
		run.matches = append(run.matches, kept...)
	}
	if searched > 1 && outages == searched {
		return jobFailure("detect conflicts", fmt.Errorf("every corpus search in batch %d-%d failed: %w", start, end-1, lastErr))
	}
	return nil
}

func (uc *ConflictUseCase) flagsFor(idx int, clause domain.ClauseSegment, matches []domain.CorpusMatch, query domain.CorpusQuery) ([]domain.ConflictFlag, []domain.CorpusMatch) {
	cfg := uc.scoring.Conflict
	out := make([]domain.ConflictFlag, 0, len(matches))
	kept := make([]domain.CorpusMatch, 0, len(matches))
	for _, m := range matches {
		if query.ExcludeDocumentID != "" && m.DocumentID == query.ExcludeDocumentID {
			continue
		}
		if m.Similarity < query.MinScore {
			continue
		}
		sim := clamp01(m.Similarity)
		kind := classifyConflict(clause.Text, m.Text, sim, cfg)
		conf := conflictConfidence(sim, clause.Type, m, cfg)
		flag := domain.ConflictFlag{
			ClauseIndex:       idx,
			ClauseReference:   clause.Label(),
			MatchedDocumentID: m.DocumentID,
			MatchedTitle:      m.Title,
			MatchedReference:  m.Reference,
			OverlapScore:      sim,
			Type:              kind,
			InputExcerpt:      excerpt(clause.Text),
			MatchedExcerpt:    excerpt(m.Text),
			Citation:          buildCitation(m),
			Confidence:        conf,
			Severity:          conflictSeverity(kind, conf, cfg),
		}
		flag.Explanation = templateConflictExplanation(flag)
		flag.ResolutionSuggestion = templateResolution(kind)
		out = append(out, flag)
		kept = append(kept, m)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, kept
}

// enrich replaces templated text with generated explanations. A failed
// generation keeps the template for that flag.
func (uc *ConflictUseCase) enrich(ctx context.Context, clauses []domain.ClauseSegment, flags []domain.ConflictFlag, matches []domain.CorpusMatch) error {
	if uc.explainer == nil || uc.caller == nil {
		return nil
	}
	for i := range flags {
		f := &flags[i]
		match := matches[i]
		var out domain.ConflictExplanation
		err := uc.caller.Call(ctx, "explain", nil, func(ctx context.Context) error {
			var err error
			out, err = uc.explainer.ExplainConflict(ctx, clauses[f.ClauseIndex], match, f.Type)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return jobFailure("detect conflicts explain", ctxErr)
			}
			uc.logger.Warn("conflict explanation failed, using template",
				"clause_index", f.ClauseIndex,
				"document_id", f.MatchedDocumentID,
				"error", err,
			)
			continue
		}
		if out.Explanation != "" {
			f.Explanation = out.Explanation
		}
		f.LegalImplications = out.LegalImplications
		f.SeverityFactors = out.SeverityFactors
		if len(out.ResolutionSuggestions) > 0 {
			f.ResolutionSuggestion = strings.Join(out.ResolutionSuggestions, "; ")
		}
	}
	return nil
}

func (uc *ConflictUseCase) corpusSize(ctx context.Context) int {
	if uc.stats == nil {
		return 0
	}
	n, err := uc.stats.CountDocuments(ctx)
	if err != nil {
		uc.logger.Warn("corpus size unavailable", "error", err)
		return 0
	}
	return n
}

func isOutage(err error) bool {
	return !domain.IsKind(err, domain.ErrTerminalRemote) && !domain.IsKind(err, domain.ErrValidation)
}

func clauseFailure(idx int, clause domain.ClauseSegment, op string, err error) domain.ClauseFailure {
	return domain.ClauseFailure{
		ClauseIndex: idx,
		Reference:   clause.Reference,
		Operation:   op,
		Attempts:    attemptsOrOne(err),
		Error:       err.Error(),
	}
}

// sortFlags orders by confidence, then overlap, then position, so equal
// inputs always produce the same report.
func sortFlags(flags []domain.ConflictFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		a, b := flags[i], flags[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.OverlapScore != b.OverlapScore {
			return a.OverlapScore > b.OverlapScore
		}
		if a.ClauseIndex != b.ClauseIndex {
			return a.ClauseIndex < b.ClauseIndex
		}
		if a.MatchedDocumentID != b.MatchedDocumentID {
			return a.MatchedDocumentID < b.MatchedDocumentID
		}
		return a.MatchedReference < b.MatchedReference
	})
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxExcerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxExcerptRunes]) + "..."
}

func templateConflictExplanation(f domain.ConflictFlag) string {
	target := f.MatchedTitle
	if f.MatchedReference != "" {
		target = f.MatchedReference + " " + target
	}
	switch f.Type {
	case domain.ConflictContradiction:
		return fmt.Sprintf("%s sets a legal modality opposite to %s (similarity %.2f).", f.ClauseReference, target, f.OverlapScore)
	case domain.ConflictInconsistency:
		return fmt.Sprintf("%s regulates the same procedure as %s with differing terms (similarity %.2f).", f.ClauseReference, target, f.OverlapScore)
	default:
		return fmt.Sprintf("%s substantially restates %s (similarity %.2f).", f.ClauseReference, target, f.OverlapScore)
	}
}

func templateResolution(kind domain.ConflictType) string {
	switch kind {
	case domain.ConflictContradiction:
		return "Harmonise the provision with the cited instrument or state an explicit derogation."
	case domain.ConflictInconsistency:
		return "Align the procedural terms with the cited instrument."
	default:
		return "Reference the existing provision instead of restating it."
	}
}
