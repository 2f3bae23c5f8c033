package domain

import "time"

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeModified ChangeKind = "modified"
	ChangeMoved    ChangeKind = "moved"
)

// MappingClass classifies a candidate pairing between two versions.
type MappingClass string

const (
	MappingExact        MappingClass = "exact"
	MappingSimilar      MappingClass = "similar"
	MappingMoved        MappingClass = "moved"
	MappingRestructured MappingClass = "restructured"
)

// ClauseMapping is a transient candidate pairing; it is never persisted.
type ClauseMapping struct {
	Old            ClauseSegment
	New            ClauseSegment
	OldIndex       int
	NewIndex       int
	Score          float64
	Confidence     float64
	Class          MappingClass
	SemanticScored bool
}

// DocumentDiff is one reported change. Added carries no OldText, deleted
// carries no NewText.
type DocumentDiff struct {
	Kind             ChangeKind `json:"change_type"`
	OldText          *string    `json:"old_text,omitempty"`
	NewText          *string    `json:"new_text,omitempty"`
	OldReference     string     `json:"old_reference,omitempty"`
	NewReference     string     `json:"new_reference,omitempty"`
	ClauseType       ClauseType `json:"clause_type"`
	Similarity       *float64   `json:"similarity_score,omitempty"`
	Significance     int        `json:"significance_score"`
	Position         int        `json:"sequence_position"`
	Context          string     `json:"context,omitempty"`
	Explanation      string     `json:"explanation,omitempty"`
	LegalImplication string     `json:"legal_implication,omitempty"`
}

// Reference returns the label that best identifies the changed clause.
func (d DocumentDiff) Reference() string {
	if d.NewReference != "" {
		return d.NewReference
	}
	return d.OldReference
}

type DiffStatistics struct {
	TotalChanges   int     `json:"total_changes"`
	Additions      int     `json:"additions"`
	Deletions      int     `json:"deletions"`
	Modifications  int     `json:"modifications"`
	Moves          int     `json:"moves"`
	Unchanged      int     `json:"unchanged"`
	Critical       int     `json:"critical_changes"`
	Major          int     `json:"major_changes"`
	Minor          int     `json:"minor_changes"`
	Trivial        int     `json:"trivial_changes"`
	OldClauseCount int     `json:"old_clause_count"`
	NewClauseCount int     `json:"new_clause_count"`
	MeanSimilarity float64 `json:"mean_similarity"`
}

type ComparisonMetadata struct {
	SemanticEnabled   bool      `json:"semantic_enabled"`
	SemanticDegraded  bool      `json:"semantic_degraded"`
	SemanticThreshold float64   `json:"semantic_threshold"`
	EmbeddingModel    string    `json:"embedding_model,omitempty"`
	CacheHits         int       `json:"cache_hits"`
	ElapsedMS         int64     `json:"elapsed_ms"`
	Timestamp         time.Time `json:"timestamp"`
	Warnings          []string  `json:"warnings,omitempty"`
}

type DocumentComparisonResult struct {
	Changes    []DocumentDiff     `json:"changes"`
	Statistics DiffStatistics     `json:"statistics"`
	Summary    string             `json:"summary"`
	Verdict    string             `json:"compatibility_verdict"`
	Metadata   ComparisonMetadata `json:"metadata"`
}

// CompareOptions are the per-request comparison settings. Nil pointers
// fall back to configured defaults.
type CompareOptions struct {
	SemanticThreshold      *float64 `json:"semantic_threshold,omitempty"`
	EnableSemanticAnalysis *bool    `json:"enable_semantic_analysis,omitempty"`
	IncludeAIExplanations  *bool    `json:"include_ai_explanations,omitempty"`
	BatchSize              *int     `json:"batch_size,omitempty"`
	TimeoutMS              *int     `json:"timeout_ms,omitempty"`
}

// CompareSettings is CompareOptions resolved against defaults.
type CompareSettings struct {
	SemanticThreshold      float64
	EnableSemanticAnalysis bool
	IncludeAIExplanations  bool
	BatchSize              int
	Timeout                time.Duration
}

func (o CompareOptions) Resolve(def CompareSettings) CompareSettings {
	out := def
	if o.SemanticThreshold != nil {
		out.SemanticThreshold = *o.SemanticThreshold
	}
	if o.EnableSemanticAnalysis != nil {
		out.EnableSemanticAnalysis = *o.EnableSemanticAnalysis
	}
	if o.IncludeAIExplanations != nil {
		out.IncludeAIExplanations = *o.IncludeAIExplanations
	}
	if o.BatchSize != nil && *o.BatchSize > 0 {
		out.BatchSize = *o.BatchSize
	}
	if o.TimeoutMS != nil && *o.TimeoutMS > 0 {
		out.Timeout = time.Duration(*o.TimeoutMS) * time.Millisecond
	}
	return out
}
