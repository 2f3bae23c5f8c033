package domain

import "time"

type ConflictType string

const (
	ConflictContradiction ConflictType = "contradiction"
	ConflictOverlap       ConflictType = "overlap"
	ConflictInconsistency ConflictType = "inconsistency"
	ConflictGap           ConflictType = "gap"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is more serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

type InstrumentType string

const (
	InstrumentStatute               InstrumentType = "statute"
	InstrumentGovernmentRegulation  InstrumentType = "government_regulation"
	InstrumentPresidentialDecree    InstrumentType = "presidential_decree"
	InstrumentMinisterialRegulation InstrumentType = "ministerial_regulation"
	InstrumentRegionalRegulation    InstrumentType = "regional_regulation"
	InstrumentUnknown               InstrumentType = "unknown"
)

const (
	JurisdictionNational = "national"

	DocumentTypeStatute    = "statute"
	DocumentTypeRegulation = "regulation"

	StatusActive = "active"
)

// Citation is the structured reference to a matched corpus instrument.
type Citation struct {
	Title            string         `json:"title"`
	InstrumentType   InstrumentType `json:"instrument_type"`
	Number           string         `json:"number,omitempty"`
	Year             int            `json:"year,omitempty"`
	Jurisdiction     string         `json:"jurisdiction"`
	Status           string         `json:"status"`
	IssuingAuthority string         `json:"issuing_authority"`
}

// CorpusQuery filters a similarity search over the indexed corpus.
type CorpusQuery struct {
	Jurisdiction      string
	DocumentTypes     []string
	ExcludeDocumentID string
	MinScore          float64
	Limit             int
}

// CorpusMatch is one ranked candidate returned by the corpus search.
type CorpusMatch struct {
	DocumentID   string  `json:"document_id"`
	Title        string  `json:"title"`
	Reference    string  `json:"reference,omitempty"`
	Text         string  `json:"text"`
	Similarity   float64 `json:"similarity"`
	Jurisdiction string  `json:"jurisdiction,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	Status       string  `json:"status,omitempty"`
}

// CorpusDocument describes an instrument being indexed into the corpus.
type CorpusDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Jurisdiction string `json:"jurisdiction"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status,omitempty"`
}

type ConflictFlag struct {
	ClauseIndex          int          `json:"clause_index"`
	ClauseReference      string       `json:"clause_reference,omitempty"`
	MatchedDocumentID    string       `json:"matched_document_id"`
	MatchedTitle         string       `json:"matched_document_title"`
	MatchedReference     string       `json:"matched_reference,omitempty"`
	OverlapScore         float64      `json:"overlap_score"`
	Type                 ConflictType `json:"conflict_type"`
	InputExcerpt         string       `json:"input_excerpt"`
	MatchedExcerpt       string       `json:"matched_excerpt"`
	Explanation          string       `json:"explanation"`
	LegalImplications    string       `json:"legal_implications,omitempty"`
	SeverityFactors      []string     `json:"severity_factors,omitempty"`
	Citation             Citation     `json:"citation"`
	Confidence           float64      `json:"confidence_score"`
	Severity             Severity     `json:"severity"`
	ResolutionSuggestion string       `json:"resolution_suggestion,omitempty"`
	Precedent            string       `json:"precedent,omitempty"`
}

// ClauseFailure records a clause skipped by a partial failure.
type ClauseFailure struct {
	ClauseIndex int    `json:"clause_index"`
	Reference   string `json:"reference,omitempty"`
	Operation   string `json:"operation"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error"`
}

type ConflictStatistics struct {
	TotalFlags           int                  `json:"total_conflicts"`
	ClausesAnalyzed      int                  `json:"clauses_analyzed"`
	ClausesWithConflicts int                  `json:"clauses_with_conflicts"`
	ByType               map[ConflictType]int `json:"by_type"`
	BySeverity           map[Severity]int     `json:"by_severity"`
	FailedClauses        int                  `json:"failed_clauses"`
}

type DetectionMetadata struct {
	CorpusSize          int       `json:"corpus_size"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
	JurisdictionFilter  string    `json:"jurisdiction_filter,omitempty"`
	DocumentTypes       []string  `json:"document_types"`
	EmbeddingModel      string    `json:"embedding_model,omitempty"`
	ElapsedMS           int64     `json:"elapsed_ms"`
	Timestamp           time.Time `json:"timestamp"`
}

type ConflictDetectionResult struct {
	Flags           []ConflictFlag     `json:"conflicts"`
	Statistics      ConflictStatistics `json:"statistics"`
	Summary         string             `json:"summary"`
	Risk            Severity           `json:"overall_risk"`
	Compatibility   float64            `json:"compatibility_score"`
	Recommendations []string           `json:"recommendations"`
	Failures        []ClauseFailure    `json:"failures,omitempty"`
	Metadata        DetectionMetadata  `json:"metadata"`
}

// DetectOptions are the per-request detection settings.
type DetectOptions struct {
	SimilarityThreshold   *float64 `json:"similarity_threshold,omitempty"`
	MaxConflictsPerClause *int     `json:"max_conflicts_per_clause,omitempty"`
	JurisdictionFilter    *string  `json:"jurisdiction_filter,omitempty"`
	DocumentTypes         []string `json:"document_types,omitempty"`
	IncludeAIExplanations *bool    `json:"include_ai_explanations,omitempty"`
	BatchSize             *int     `json:"batch_size,omitempty"`
	TimeoutMS             *int     `json:"timeout_ms,omitempty"`
}

type DetectSettings struct {
	SimilarityThreshold   float64
	MaxConflictsPerClause int
	JurisdictionFilter    string
	DocumentTypes         []string
	IncludeAIExplanations bool
	BatchSize             int
	Timeout               time.Duration
}

func (o DetectOptions) Resolve(def DetectSettings) DetectSettings {
	out := def
	if o.SimilarityThreshold != nil {
		out.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.MaxConflictsPerClause != nil && *o.MaxConflictsPerClause > 0 {
		out.MaxConflictsPerClause = *o.MaxConflictsPerClause
	}
	if o.JurisdictionFilter != nil {
		out.JurisdictionFilter = *o.JurisdictionFilter
	}
	if len(o.DocumentTypes) > 0 {
		out.DocumentTypes = append([]string(nil), o.DocumentTypes...)
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

// ChangeExplanation is the structured output of the generation service for
// one changed clause.
type ChangeExplanation struct {
	Explanation      string `json:"explanation"`
	LegalImplication string `json:"legal_implications"`
}

// ConflictExplanation is the structured output of the generation service for
// a clause/corpus pair.
type ConflictExplanation struct {
	Explanation           string   `json:"explanation"`
	LegalImplications     string   `json:"legal_implications"`
	ResolutionSuggestions []string `json:"resolution_suggestions"`
	SeverityFactors       []string `json:"severity_factors"`
}
