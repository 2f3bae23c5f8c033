package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const noChangesSummary = "No changes detected between the two document versions."

// significance grades a change on [1,5] from the clause's hierarchy weight
// and a change-kind factor.
func significance(kind domain.ChangeKind, clauseType domain.ClauseType, similarity float64, cfg domain.SignificanceScoring) int {
	weight, ok := cfg.HierarchyWeights[clauseType.Normalized()]
	if !ok {
		weight = cfg.HierarchyWeights[domain.ClauseGeneral]
	}
	if weight <= 0 {
		weight = 1
	}

	factor := 1.0
	switch kind {
	case domain.ChangeDeleted:
		factor = cfg.DeletedFactor
	case domain.ChangeAdded:
		factor = cfg.AddedFactor
	case domain.ChangeMoved:
		factor = cfg.MovedFactor
	case domain.ChangeModified:
		factor = 1 + (1 - clamp01(similarity))
	}

	score := int(math.Round(weight * factor))
	switch {
	case score < 1:
		return 1
	case score > 5:
		return 5
	default:
		return score
	}
}

var changeKindRank = map[domain.ChangeKind]int{
	domain.ChangeDeleted:  0,
	domain.ChangeModified: 1,
	domain.ChangeMoved:    2,
	domain.ChangeAdded:    3,
}

type rankedDiff struct {
	diff     domain.DocumentDiff
	oldOrder int
}

// sortDiffs orders by sequence position, then change kind, then old order.
func sortDiffs(in []rankedDiff) []domain.DocumentDiff {
	sort.SliceStable(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if a.diff.Position != b.diff.Position {
			return a.diff.Position < b.diff.Position
		}
		if ra, rb := changeKindRank[a.diff.Kind], changeKindRank[b.diff.Kind]; ra != rb {
			return ra < rb
		}
		return a.oldOrder < b.oldOrder
	})
	out := make([]domain.DocumentDiff, len(in))
	for i, r := range in {
		out[i] = r.diff
	}
	return out
}

func diffStatistics(diffs []domain.DocumentDiff, unchanged, oldCount, newCount int) domain.DiffStatistics {
	stats := domain.DiffStatistics{
		TotalChanges:   len(diffs),
		Unchanged:      unchanged,
		OldClauseCount: oldCount,
		NewClauseCount: newCount,
	}
	var simSum float64
	simN := 0
	for _, d := range diffs {
		switch d.Kind {
		case domain.ChangeAdded:
			stats.Additions++
		case domain.ChangeDeleted:
			stats.Deletions++
		case domain.ChangeModified:
			stats.Modifications++
		case domain.ChangeMoved:
			stats.Moves++
		}
		switch {
		case d.Significance >= 5:
			stats.Critical++
		case d.Significance == 4:
			stats.Major++
		case d.Significance >= 2:
			stats.Minor++
		default:
			stats.Trivial++
		}
		if d.Kind == domain.ChangeModified && d.Similarity != nil {
			simSum += *d.Similarity
			simN++
		}
	}
	if simN > 0 {
		stats.MeanSimilarity = simSum / float64(simN)
	}
	return stats
}

func comparisonSummary(stats domain.DiffStatistics) string {
	if stats.TotalChanges == 0 {
		return noChangesSummary
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d change(s): %d addition(s), %d deletion(s), %d modification(s), %d move(s).",
		stats.TotalChanges, stats.Additions, stats.Deletions, stats.Modifications, stats.Moves)
	if stats.Critical+stats.Major > 0 {
		fmt.Fprintf(&b, " %d critical and %d major change(s) require legal review.", stats.Critical, stats.Major)
	} else {
		b.WriteString(" No critical or major changes.")
	}
	return b.String()
}

func comparisonVerdict(stats domain.DiffStatistics) string {
	switch {
	case stats.TotalChanges == 0:
		return "identical"
	case stats.Critical > 0:
		return "fundamental_changes"
	case stats.Major > 0:
		return "substantive_changes"
	default:
		return "minor_changes"
	}
}
