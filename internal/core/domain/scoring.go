package domain

// ScoringConfig holds the empirically chosen constants of alignment,
// significance and conflict grading. Defaults reproduce the reference
// behaviour; a YAML file may override any subset.
type ScoringConfig struct {
	Alignment    AlignmentScoring    `yaml:"alignment" json:"alignment"`
	Significance SignificanceScoring `yaml:"significance" json:"significance"`
	Conflict     ConflictScoring     `yaml:"conflict" json:"conflict"`
}

type AlignmentScoring struct {
	SemanticWeight     float64 `yaml:"semantic_weight" json:"semantic_weight"`
	TextWeight         float64 `yaml:"text_weight" json:"text_weight"`
	EditDistanceWeight float64 `yaml:"edit_distance_weight" json:"edit_distance_weight"`
	JaccardWeight      float64 `yaml:"jaccard_weight" json:"jaccard_weight"`
	MinWordLength      int     `yaml:"min_word_length" json:"min_word_length"`
	SameTypeBoost      float64 `yaml:"same_type_boost" json:"same_type_boost"`
	PositionBoost      float64 `yaml:"position_boost" json:"position_boost"`
	SameReferenceBoost float64 `yaml:"same_reference_boost" json:"same_reference_boost"`
	SimilarThreshold   float64 `yaml:"similar_threshold" json:"similar_threshold"`
	MovedThreshold     float64 `yaml:"moved_threshold" json:"moved_threshold"`
	MovedMinDistance   int     `yaml:"moved_min_distance" json:"moved_min_distance"`
	MajorBelow         float64 `yaml:"major_below" json:"major_below"`
	ModerateBelow      float64 `yaml:"moderate_below" json:"moderate_below"`
}

type SignificanceScoring struct {
	HierarchyWeights map[ClauseType]float64 `yaml:"hierarchy_weights" json:"hierarchy_weights"`
	DeletedFactor    float64                `yaml:"deleted_factor" json:"deleted_factor"`
	AddedFactor      float64                `yaml:"added_factor" json:"added_factor"`
	MovedFactor      float64                `yaml:"moved_factor" json:"moved_factor"`
}

// SeverityThresholds grade confidence for one conflict type. A threshold of
// zero disables that level; Floor is returned when no threshold is exceeded.
type SeverityThresholds struct {
	Critical float64  `yaml:"critical" json:"critical"`
	High     float64  `yaml:"high" json:"high"`
	Medium   float64  `yaml:"medium" json:"medium"`
	Floor    Severity `yaml:"floor" json:"floor"`
}

// Grade maps a confidence score onto a severity. Thresholds are exclusive.
func (t SeverityThresholds) Grade(confidence float64) Severity {
	switch {
	case t.Critical > 0 && confidence > t.Critical:
		return SeverityCritical
	case t.High > 0 && confidence > t.High:
		return SeverityHigh
	case t.Medium > 0 && confidence > t.Medium:
		return SeverityMedium
	case t.Floor != "":
		return t.Floor
	default:
		return SeverityLow
	}
}

type ConflictScoring struct {
	OverlapSimilarity       float64                             `yaml:"overlap_similarity" json:"overlap_similarity"`
	InconsistencySimilarity float64                             `yaml:"inconsistency_similarity" json:"inconsistency_similarity"`
	ClauseTypeWeights       map[ClauseType]float64              `yaml:"clause_type_weights" json:"clause_type_weights"`
	NationalMultiplier      float64                             `yaml:"national_multiplier" json:"national_multiplier"`
	StatuteMultiplier       float64                             `yaml:"statute_multiplier" json:"statute_multiplier"`
	Severity                map[ConflictType]SeverityThresholds `yaml:"severity" json:"severity"`
	SeverityWeights         map[Severity]float64                `yaml:"severity_weights" json:"severity_weights"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Alignment: AlignmentScoring{
			SemanticWeight:     0.7,
			TextWeight:         0.3,
			EditDistanceWeight: 0.3,
			JaccardWeight:      0.7,
			MinWordLength:      3,
			SameTypeBoost:      0.1,
			PositionBoost:      0.1,
			SameReferenceBoost: 0.2,
			SimilarThreshold:   0.85,
			MovedThreshold:     0.95,
			MovedMinDistance:   3,
			MajorBelow:         0.7,
			ModerateBelow:      0.9,
		},
		Significance: SignificanceScoring{
			HierarchyWeights: map[ClauseType]float64{
				ClauseChapter:    5,
				ClauseArticle:    5,
				ClauseSection:    4,
				ClauseSubsection: 4,
				ClauseParagraph:  4,
				ClausePoint:      2,
				ClauseItem:       2,
				ClauseGeneral:    1,
			},
			DeletedFactor: 1.2,
			AddedFactor:   1.1,
			MovedFactor:   0.8,
		},
		Conflict: ConflictScoring{
			OverlapSimilarity:       0.9,
			InconsistencySimilarity: 0.7,
			ClauseTypeWeights: map[ClauseType]float64{
				ClauseArticle:   1.2,
				ClauseParagraph: 1.1,
			},
			NationalMultiplier: 1.3,
			StatuteMultiplier:  1.2,
			Severity: map[ConflictType]SeverityThresholds{
				ConflictContradiction: {Critical: 0.9, High: 0.8, Floor: SeverityMedium},
				ConflictOverlap:       {High: 0.95, Medium: 0.85},
				ConflictInconsistency: {High: 0.85, Medium: 0.7},
				ConflictGap:           {Medium: 0.8},
			},
			SeverityWeights: map[Severity]float64{
				SeverityCritical: 4,
				SeverityHigh:     3,
				SeverityMedium:   2,
				SeverityLow:      1,
			},
		},
	}
}

// Merge returns c with every zero-valued field taken from def.
func (c ScoringConfig) Merge(def ScoringConfig) ScoringConfig {
	out := c
	a, d := &out.Alignment, def.Alignment
	mergeFloat(&a.SemanticWeight, d.SemanticWeight)
	mergeFloat(&a.TextWeight, d.TextWeight)
	mergeFloat(&a.EditDistanceWeight, d.EditDistanceWeight)
	mergeFloat(&a.JaccardWeight, d.JaccardWeight)
	if a.MinWordLength <= 0 {
		a.MinWordLength = d.MinWordLength
	}
	mergeFloat(&a.SameTypeBoost, d.SameTypeBoost)
	mergeFloat(&a.PositionBoost, d.PositionBoost)
	mergeFloat(&a.SameReferenceBoost, d.SameReferenceBoost)
	mergeFloat(&a.SimilarThreshold, d.SimilarThreshold)
	mergeFloat(&a.MovedThreshold, d.MovedThreshold)
	if a.MovedMinDistance <= 0 {
		a.MovedMinDistance = d.MovedMinDistance
	}
	mergeFloat(&a.MajorBelow, d.MajorBelow)
	mergeFloat(&a.ModerateBelow, d.ModerateBelow)

	s, sd := &out.Significance, def.Significance
	s.HierarchyWeights = mergeMap(s.HierarchyWeights, sd.HierarchyWeights)
	mergeFloat(&s.DeletedFactor, sd.DeletedFactor)
	mergeFloat(&s.AddedFactor, sd.AddedFactor)
	mergeFloat(&s.MovedFactor, sd.MovedFactor)

	k, kd := &out.Conflict, def.Conflict
	mergeFloat(&k.OverlapSimilarity, kd.OverlapSimilarity)
	mergeFloat(&k.InconsistencySimilarity, kd.InconsistencySimilarity)
	k.ClauseTypeWeights = mergeMap(k.ClauseTypeWeights, kd.ClauseTypeWeights)
	mergeFloat(&k.NationalMultiplier, kd.NationalMultiplier)
	mergeFloat(&k.StatuteMultiplier, kd.StatuteMultiplier)
	k.Severity = mergeSeverity(k.Severity, kd.Severity)
	k.SeverityWeights = mergeMap(k.SeverityWeights, kd.SeverityWeights)
	return out
}

func mergeFloat(dst *float64, def float64) {
	if *dst == 0 {
		*dst = def
	}
}

// mergeSeverity fills unset thresholds per field, so overriding one level of
// a conflict type keeps the other levels and the floor.
func mergeSeverity(dst, def map[ConflictType]SeverityThresholds) map[ConflictType]SeverityThresholds {
	out := mergeMap(dst, def)
	for kind, t := range dst {
		d, ok := def[kind]
		if !ok {
			continue
		}
		mergeFloat(&t.Critical, d.Critical)
		mergeFloat(&t.High, d.High)
		mergeFloat(&t.Medium, d.Medium)
		if t.Floor == "" {
			t.Floor = d.Floor
		}
		out[kind] = t
	}
	return out
}

func mergeMap[K comparable, V any](dst, def map[K]V) map[K]V {
	out := make(map[K]V, len(def)+len(dst))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range dst {
		out[k] = v
	}
	return out
}
