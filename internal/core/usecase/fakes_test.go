package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// directCaller runs the remote call once, without retries.
type directCaller struct {
	calls map[string]int
	mu    sync.Mutex
}

func (c *directCaller) Call(ctx context.Context, operation string, _ *domain.RetryPolicy, fn func(context.Context) error) error {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[operation]++
	c.mu.Unlock()
	return fn(ctx)
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]domain.EmbeddingVector
	gets  int
	err   error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]domain.EmbeddingVector)}
}

func (c *mapCache) Get(_ context.Context, key string) (domain.EmbeddingVector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return domain.EmbeddingVector{}, false, c.err
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Put(_ context.Context, key string, vec domain.EmbeddingVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.items[key] = vec
	return nil
}

func (c *mapCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]domain.EmbeddingVector)
	return nil
}

func (c *mapCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStats{Size: len(c.items)}
}

// fakeProvider embeds text into a deterministic bag-of-letters vector.
// Texts listed in failOn make any call that contains them fail.
type fakeProvider struct {
	mu       sync.Mutex
	maxBatch int
	calls    [][]string
	failOn   map[string]error
	failAll  error
}

func (p *fakeProvider) ModelID() string { return "fake/model" }

func (p *fakeProvider) MaxBatchSize() int { return p.maxBatch }

func (p *fakeProvider) EmbedTexts(_ context.Context, texts []string) (domain.ProviderBatch, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]string(nil), texts...))
	p.mu.Unlock()
	if p.failAll != nil {
		return domain.ProviderBatch{}, p.failAll
	}
	for _, t := range texts {
		if err, ok := p.failOn[t]; ok {
			return domain.ProviderBatch{}, err
		}
	}
	out := domain.ProviderBatch{Vectors: make([][]float32, len(texts)), TokenCount: 3 * len(texts)}
	for i, t := range texts {
		out.Vectors[i] = letterVector(t)
	}
	return out, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func letterVector(text string) []float32 {
	v := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z':
			v[r-'a']++
		default:
			v[26] += 0.1
		}
	}
	return v
}

type recordingReporter struct {
	mu     sync.Mutex
	events []domain.EmbeddingProgress
	err    error
	panic  bool
}

func (r *recordingReporter) Report(_ context.Context, p domain.EmbeddingProgress) error {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
	if r.panic {
		panic("reporter exploded")
	}
	return r.err
}
