package domain

import "time"

// EmbeddingVector is a fixed-dimension vector plus provenance.
// Vectors produced by different models must never be compared.
type EmbeddingVector struct {
	Values     []float32 `json:"values"`
	Model      string    `json:"model"`
	TokenCount int       `json:"token_count"`
	Cached     bool      `json:"cached"`
}

func (v EmbeddingVector) Dimension() int {
	return len(v.Values)
}

// EmbeddingResult is the per-item outcome of a batch embedding call.
type EmbeddingResult struct {
	Vector EmbeddingVector
	Err    error
}

func (r EmbeddingResult) OK() bool {
	return r.Err == nil && len(r.Vector.Values) > 0
}

// ProviderBatch is what an embedding provider returns for one remote call.
type ProviderBatch struct {
	Vectors    [][]float32
	TokenCount int
}

// EmbeddingProgress is reported after every remote group of a batch.
type EmbeddingProgress struct {
	JobID      string        `json:"job_id,omitempty"`
	Completed  int           `json:"completed"`
	Total      int           `json:"total"`
	BatchIndex int           `json:"batch_index"`
	BatchCount int           `json:"batch_count"`
	CacheHits  int           `json:"cache_hits"`
	Failed     int           `json:"failed"`
	ETA        time.Duration `json:"eta_ns"`
}

// CacheStats is a point-in-time snapshot of an embedding cache.
type CacheStats struct {
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// RetryPolicy is an explicit retry policy for one remote call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the randomization factor in [0,1) applied to each delay.
	Jitter float64
}
