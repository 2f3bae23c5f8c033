package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
)

const defaultEmbedBatchSize = 32

type EmbeddingConfig struct {
	BatchSize int
	MaxChars  int
	// ItemsPerSecond paces remote groups; zero disables pacing.
	ItemsPerSecond float64
}

// EmbeddingService turns clause text into vectors through a content-hash
// cache, batching cache misses into provider calls.
type EmbeddingService struct {
	provider ports.EmbeddingProvider
	local    ports.VectorCache
	shared   ports.VectorCache
	caller   ports.RemoteCaller
	limiter  *rate.Limiter
	progress ports.ProgressReporter
	observer ports.PipelineObserver
	logger   *slog.Logger
	cfg      EmbeddingConfig
}

func NewEmbeddingService(
	provider ports.EmbeddingProvider,
	local ports.VectorCache,
	caller ports.RemoteCaller,
	cfg EmbeddingConfig,
	logger *slog.Logger,
) *EmbeddingService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbedBatchSize
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &EmbeddingService{
		provider: provider,
		local:    local,
		caller:   caller,
		observer: ports.NopObserver{},
		logger:   logger,
		cfg:      cfg,
	}
	if cfg.ItemsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ItemsPerSecond), s.groupSize())
	}
	return s
}

// WithSharedCache adds a second cache tier consulted after the local one.
func (s *EmbeddingService) WithSharedCache(c ports.VectorCache) *EmbeddingService {
	s.shared = c
	return s
}

// WithProgressReporter sets the default progress sink for batch calls.
func (s *EmbeddingService) WithProgressReporter(r ports.ProgressReporter) *EmbeddingService {
	s.progress = r
	return s
}

func (s *EmbeddingService) WithObserver(o ports.PipelineObserver) *EmbeddingService {
	if o != nil {
		s.observer = o
	}
	return s
}

type EmbedOption func(*embedCall)

type embedCall struct {
	policy   *domain.RetryPolicy
	progress ports.ProgressReporter
	jobID    string
	group    int
}

// WithRetryPolicy overrides the retry policy for remote calls of one request.
func WithRetryPolicy(p domain.RetryPolicy) EmbedOption {
	return func(c *embedCall) { c.policy = &p }
}

func WithProgress(r ports.ProgressReporter) EmbedOption {
	return func(c *embedCall) { c.progress = r }
}

func WithJobID(id string) EmbedOption {
	return func(c *embedCall) { c.jobID = id }
}

// WithGroupSize caps how many texts one provider call carries for this
// request. It never raises the configured or provider limit.
func WithGroupSize(n int) EmbedOption {
	return func(c *embedCall) { c.group = n }
}

func (s *EmbeddingService) ModelID() string {
	return s.provider.ModelID()
}

// CacheStats reports the local cache tier.
func (s *EmbeddingService) CacheStats() domain.CacheStats {
	if sc, ok := s.local.(interface{ Stats() domain.CacheStats }); ok {
		return sc.Stats()
	}
	return domain.CacheStats{}
}

func (s *EmbeddingService) ClearCache(ctx context.Context) error {
	if err := s.local.Clear(ctx); err != nil {
		return err
	}
	if s.shared != nil {
		return s.shared.Clear(ctx)
	}
	return nil
}

func (s *EmbeddingService) Embed(ctx context.Context, text string, opts ...EmbedOption) (domain.EmbeddingVector, error) {
	results, err := s.EmbedBatch(ctx, []string{text}, opts...)
	if err != nil {
		return domain.EmbeddingVector{}, err
	}
	if results[0].Err != nil {
		return domain.EmbeddingVector{}, results[0].Err
	}
	return results[0].Vector, nil
}

type pendingText struct {
	key       string
	text      string
	positions []int
}

// EmbedBatch returns one result per input, in input order. Invalid or
// failed items carry an error in their result; the returned error is
// non-nil only when the whole job failed.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, opts ...EmbedOption) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, domain.NewValidationError("embed batch", "no texts supplied")
	}
	call := embedCall{progress: s.progress}
	for _, opt := range opts {
		opt(&call)
	}

	model := s.provider.ModelID()
	results := make([]domain.EmbeddingResult, len(texts))
	hitByKey := make(map[string]domain.EmbeddingVector)
	missByKey := make(map[string]*pendingText)
	misses := make([]*pendingText, 0, len(texts))
	resolved, hits := 0, 0

	for i, raw := range texts {
		norm := normalizeText(raw, s.cfg.MaxChars)
		if norm == "" {
			results[i].Err = &domain.OperationError{
				Kind:        domain.ErrValidation,
				Operation:   "embed",
				ClauseIndex: i,
				Err:         errors.New("text is empty after normalization"),
			}
			resolved++
			continue
		}
		key := cacheKey(model, norm)
		if vec, ok := hitByKey[key]; ok {
			results[i].Vector = cloneVector(vec)
			resolved++
			hits++
			continue
		}
		if p, ok := missByKey[key]; ok {
			p.positions = append(p.positions, i)
			continue
		}
		if vec, ok := s.lookup(ctx, key); ok {
			hitByKey[key] = vec
			results[i].Vector = cloneVector(vec)
			resolved++
			hits++
			continue
		}
		p := &pendingText{key: key, text: norm, positions: []int{i}}
		missByKey[key] = p
		misses = append(misses, p)
	}

	groups := chunkPending(misses, call.groupSize(s.groupSize()))
	var spent time.Duration
	failed := 0
	for gi, group := range groups {
		if s.limiter != nil {
			if err := s.limiter.WaitN(ctx, len(group)); err != nil {
				return nil, jobFailure("embed", err)
			}
		}

		started := time.Now()
		groupFailed, err := s.embedGroup(ctx, call.policy, model, group, results)
		spent += time.Since(started)
		if err != nil {
			return nil, err
		}
		failed += groupFailed
		for _, p := range group {
			resolved += len(p.positions)
		}

		mean := spent / time.Duration(gi+1)
		s.report(ctx, call.progress, domain.EmbeddingProgress{
			JobID:      call.jobID,
			Completed:  resolved,
			Total:      len(texts),
			BatchIndex: gi + 1,
			BatchCount: len(groups),
			CacheHits:  hits,
			Failed:     failed,
			ETA:        mean * time.Duration(len(groups)-gi-1),
		})
	}

	return results, nil
}

// embedGroup embeds one provider-bounded group, falling back to per-item
// calls when the group call fails with a non fail-fast error. The returned
// error is a job failure.
func (s *EmbeddingService) embedGroup(
	ctx context.Context,
	policy *domain.RetryPolicy,
	model string,
	group []*pendingText,
	results []domain.EmbeddingResult,
) (int, error) {
	batch, err := s.callProvider(ctx, policy, groupTexts(group))
	if err == nil {
		s.store(ctx, model, group, batch, results)
		return 0, nil
	}
	if ctx.Err() != nil || domain.IsFailFast(err) {
		return 0, jobFailure("embed", err)
	}
	if len(group) == 1 {
		s.markFailed(group[0], err, results)
		return len(group[0].positions), nil
	}

	s.logger.Warn("embedding group failed, falling back to single items",
		"items", len(group),
		"attempts", domain.AttemptsOf(err),
		"error", err,
	)
	failed := 0
	for _, p := range group {
		single, itemErr := s.callProvider(ctx, policy, []string{p.text})
		if itemErr != nil {
			if ctx.Err() != nil || domain.IsFailFast(itemErr) {
				return failed, jobFailure("embed", itemErr)
			}
			s.markFailed(p, itemErr, results)
			failed += len(p.positions)
			continue
		}
		s.store(ctx, model, []*pendingText{p}, single, results)
	}
	return failed, nil
}

func (s *EmbeddingService) callProvider(ctx context.Context, policy *domain.RetryPolicy, texts []string) (domain.ProviderBatch, error) {
	started := time.Now()
	var batch domain.ProviderBatch
	err := s.caller.Call(ctx, "embed", policy, func(ctx context.Context) error {
		out, err := s.provider.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(out.Vectors) != len(texts) {
			return domain.WrapTerminal(nil, "embed", fmt.Errorf("provider returned %d vectors for %d texts", len(out.Vectors), len(texts)))
		}
		batch = out
		return nil
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.observer.ObserveEmbeddingCall(outcome, len(texts), time.Since(started))
	return batch, err
}

func (s *EmbeddingService) store(ctx context.Context, model string, group []*pendingText, batch domain.ProviderBatch, results []domain.EmbeddingResult) {
	share, rem := 0, 0
	if len(group) > 0 {
		share, rem = batch.TokenCount/len(group), batch.TokenCount%len(group)
	}
	for k, p := range group {
		tokens := share
		if k < rem {
			tokens++
		}
		vec := domain.EmbeddingVector{Values: batch.Vectors[k], Model: model, TokenCount: tokens}
		if err := s.local.Put(ctx, p.key, vec); err != nil {
			s.logger.Warn("embedding cache put failed", "tier", "local", "error", err)
		}
		if s.shared != nil {
			if err := s.shared.Put(ctx, p.key, vec); err != nil {
				s.logger.Warn("embedding cache put failed", "tier", "shared", "error", err)
			}
		}
		for n, pos := range p.positions {
			out := cloneVector(vec)
			if n > 0 {
				// duplicates inside one request reuse the first remote result
				out.TokenCount = 0
				out.Cached = true
			}
			results[pos].Vector = out
		}
	}
}

func (s *EmbeddingService) markFailed(p *pendingText, err error, results []domain.EmbeddingResult) {
	for _, pos := range p.positions {
		results[pos].Err = &domain.OperationError{
			Kind:        domain.ErrPartialFailure,
			Operation:   "embed",
			ClauseIndex: pos,
			Attempts:    attemptsOrOne(err),
			Err:         err,
		}
	}
}

func (s *EmbeddingService) lookup(ctx context.Context, key string) (domain.EmbeddingVector, bool) {
	vec, ok, err := s.local.Get(ctx, key)
	if err != nil {
		s.logger.Warn("embedding cache get failed", "tier", "local", "error", err)
	}
	if ok {
		s.observer.ObserveEmbeddingLookup(true)
		return asCached(vec), true
	}
	if s.shared != nil {
		vec, ok, err = s.shared.Get(ctx, key)
		if err != nil {
			s.logger.Warn("embedding cache get failed", "tier", "shared", "error", err)
		}
		if ok {
			if err := s.local.Put(ctx, key, vec); err != nil {
				s.logger.Warn("embedding cache promote failed", "error", err)
			}
			s.observer.ObserveEmbeddingLookup(true)
			return asCached(vec), true
		}
	}
	s.observer.ObserveEmbeddingLookup(false)
	return domain.EmbeddingVector{}, false
}

// report never lets a failing or panicking reporter abort the batch.
func (s *EmbeddingService) report(ctx context.Context, r ports.ProgressReporter, p domain.EmbeddingProgress) {
	if r == nil {
		s.logger.Debug("embedding progress",
			"job_id", p.JobID,
			"completed", p.Completed,
			"total", p.Total,
			"batch", p.BatchIndex,
			"batches", p.BatchCount,
		)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("progress reporter panicked", "job_id", p.JobID, "panic", fmt.Sprint(rec))
		}
	}()
	if err := r.Report(ctx, p); err != nil {
		s.logger.Warn("progress report failed", "job_id", p.JobID, "error", err)
	}
}

func (s *EmbeddingService) groupSize() int {
	size := s.cfg.BatchSize
	if limit := s.provider.MaxBatchSize(); limit > 0 && limit < size {
		size = limit
	}
	return size
}

func (c embedCall) groupSize(limit int) int {
	if c.group > 0 && c.group < limit {
		return c.group
	}
	return limit
}

func chunkPending(items []*pendingText, size int) [][]*pendingText {
	if len(items) == 0 {
		return nil
	}
	out := make([][]*pendingText, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func groupTexts(group []*pendingText) []string {
	out := make([]string, len(group))
	for i, p := range group {
		out[i] = p.text
	}
	return out
}

func asCached(v domain.EmbeddingVector) domain.EmbeddingVector {
	v.Cached = true
	v.TokenCount = 0
	return v
}

func cloneVector(v domain.EmbeddingVector) domain.EmbeddingVector {
	out := v
	out.Values = append([]float32(nil), v.Values...)
	return out
}

func jobFailure(operation string, err error) error {
	return &domain.OperationError{
		Kind:        domain.ErrJobFailed,
		Operation:   operation,
		ClauseIndex: -1,
		Attempts:    domain.AttemptsOf(err),
		Err:         err,
	}
}

func attemptsOrOne(err error) int {
	if n := domain.AttemptsOf(err); n > 0 {
		return n
	}
	return 1
}
