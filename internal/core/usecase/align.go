package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

type alignedClause struct {
	seg domain.ClauseSegment
	idx int
	vec *domain.EmbeddingVector
}

type alignment struct {
	mappings     []domain.ClauseMapping
	unmatchedOld []alignedClause
	unmatchedNew []alignedClause
	// degradedPairs counts pairs that had vectors but fell back to text-only.
	degradedPairs int
}

// prepareClauses validates one side of a comparison and returns its clauses
// sorted by sequence order with clause types normalised.
func prepareClauses(side string, clauses []domain.ClauseSegment) ([]alignedClause, error) {
	out := make([]alignedClause, len(clauses))
	seen := make(map[int]int, len(clauses))
	for i, c := range clauses {
		if strings.TrimSpace(c.Text) == "" {
			return nil, &domain.OperationError{
				Kind:        domain.ErrValidation,
				Operation:   "compare " + side,
				ClauseIndex: i,
				Err:         errEmptyClause,
			}
		}
		if prev, dup := seen[c.Order]; dup {
			return nil, domain.NewValidationError("compare "+side, "clauses %d and %d share sequence order %d", prev, i, c.Order)
		}
		seen[c.Order] = i
		c.Type = c.Type.Normalized()
		out[i] = alignedClause{seg: c}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seg.Order < out[j].seg.Order })
	for i := range out {
		out[i].idx = i
	}
	return out, nil
}

// align greedily pairs each old clause, in sequence order, with the best
// still-unclaimed new clause. Cost is O(n*m) pair scorings, acceptable for
// documents of a few hundred clauses.
func align(oldSide, newSide []alignedClause, threshold float64, cfg domain.AlignmentScoring) alignment {
	var out alignment
	claimed := make([]bool, len(newSide))

	for _, o := range oldSide {
		best, bestScore, bestSemantic := -1, -1.0, false
		for j, n := range newSide {
			if claimed[j] {
				continue
			}
			score, semantic, degraded := pairScore(o, n, cfg)
			if degraded {
				out.degradedPairs++
			}
			if score > bestScore {
				best, bestScore, bestSemantic = j, score, semantic
			}
		}
		if best < 0 || bestScore < threshold {
			out.unmatchedOld = append(out.unmatchedOld, o)
			continue
		}
		claimed[best] = true
		n := newSide[best]
		m := domain.ClauseMapping{
			Old:            o.seg,
			New:            n.seg,
			OldIndex:       o.idx,
			NewIndex:       n.idx,
			Score:          bestScore,
			Confidence:     mappingConfidence(o, n, len(oldSide), len(newSide), bestScore, cfg),
			SemanticScored: bestSemantic,
		}
		m.Class = classifyMapping(m, cfg)
		out.mappings = append(out.mappings, m)
	}
	for j, n := range newSide {
		if !claimed[j] {
			out.unmatchedNew = append(out.unmatchedNew, n)
		}
	}
	return out
}

// pairScore combines semantic and text similarity. A pair whose vectors
// cannot be compared degrades to text similarity alone.
func pairScore(o, n alignedClause, cfg domain.AlignmentScoring) (score float64, semantic, degraded bool) {
	text := textSimilarity(o.seg.Text, n.seg.Text, cfg)
	if o.vec == nil || n.vec == nil {
		return text, false, false
	}
	cos, err := cosineSimilarity(*o.vec, *n.vec)
	if err != nil {
		return text, false, true
	}
	return clamp01(cfg.SemanticWeight*cos + cfg.TextWeight*text), true, false
}

func mappingConfidence(o, n alignedClause, oldLen, newLen int, score float64, cfg domain.AlignmentScoring) float64 {
	conf := score
	if o.seg.Type == n.seg.Type {
		conf += cfg.SameTypeBoost
	}
	conf += cfg.PositionBoost * (1 - math.Abs(relativePosition(o.idx, oldLen)-relativePosition(n.idx, newLen)))
	if ref := strings.TrimSpace(o.seg.Reference); ref != "" && strings.EqualFold(ref, strings.TrimSpace(n.seg.Reference)) {
		conf += cfg.SameReferenceBoost
	}
	return clamp01(conf)
}

func relativePosition(idx, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(idx) / float64(n-1)
}

// classifyMapping checks exact, then moved, then similar, then restructured.
func classifyMapping(m domain.ClauseMapping, cfg domain.AlignmentScoring) domain.MappingClass {
	delta := m.OldIndex - m.NewIndex
	if delta < 0 {
		delta = -delta
	}
	displaced := delta >= cfg.MovedMinDistance
	switch {
	case sameText(m.Old.Text, m.New.Text):
		if displaced {
			return domain.MappingMoved
		}
		return domain.MappingExact
	case m.Score >= cfg.MovedThreshold && displaced:
		return domain.MappingMoved
	case m.Score >= cfg.SimilarThreshold:
		return domain.MappingSimilar
	default:
		return domain.MappingRestructured
	}
}

func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
