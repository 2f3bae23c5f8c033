package usecase

import (
	"fmt"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

var (
	conflictTypes = []domain.ConflictType{
		domain.ConflictContradiction,
		domain.ConflictOverlap,
		domain.ConflictInconsistency,
		domain.ConflictGap,
	}
	severities = []domain.Severity{
		domain.SeverityCritical,
		domain.SeverityHigh,
		domain.SeverityMedium,
		domain.SeverityLow,
	}
)

func conflictStatistics(flags []domain.ConflictFlag, analyzed, failed int) domain.ConflictStatistics {
	stats := domain.ConflictStatistics{
		TotalFlags:      len(flags),
		ClausesAnalyzed: analyzed,
		ByType:          make(map[domain.ConflictType]int, len(conflictTypes)),
		BySeverity:      make(map[domain.Severity]int, len(severities)),
		FailedClauses:   failed,
	}
	for _, k := range conflictTypes {
		stats.ByType[k] = 0
	}
	for _, s := range severities {
		stats.BySeverity[s] = 0
	}
	withFlags := make(map[int]struct{})
	for _, f := range flags {
		stats.ByType[f.Type]++
		stats.BySeverity[f.Severity]++
		withFlags[f.ClauseIndex] = struct{}{}
	}
	stats.ClausesWithConflicts = len(withFlags)
	return stats
}

// overallRisk escalates on any critical flag, on three high flags, or on
// one high flag backed by three medium ones.
func overallRisk(flags []domain.ConflictFlag) domain.Severity {
	var critical, high, medium int
	for _, f := range flags {
		switch f.Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityHigh:
			high++
		case domain.SeverityMedium:
			medium++
		}
	}
	switch {
	case critical > 0:
		return domain.SeverityCritical
	case high >= 3 || (high >= 1 && medium >= 3):
		return domain.SeverityHigh
	case high >= 1 || medium >= 3:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// compatibilityScore is one minus the severity-weighted mean confidence,
// normalised by the heaviest weight. No flags means full compatibility.
func compatibilityScore(flags []domain.ConflictFlag, weights map[domain.Severity]float64) float64 {
	if len(flags) == 0 {
		return 1.0
	}
	maxWeight := 0.0
	for _, w := range weights {
		maxWeight = max(maxWeight, w)
	}
	if maxWeight == 0 {
		return 1.0
	}
	sum := 0.0
	for _, f := range flags {
		sum += weights[f.Severity] * f.Confidence
	}
	return clamp01(1 - sum/(float64(len(flags))*maxWeight))
}

func conflictSummary(stats domain.ConflictStatistics, risk domain.Severity) string {
	if stats.TotalFlags == 0 {
		msg := fmt.Sprintf("No potential conflicts detected in %d analyzed clause(s).", stats.ClausesAnalyzed)
		if stats.FailedClauses > 0 {
			msg += fmt.Sprintf(" %d clause(s) could not be analyzed.", stats.FailedClauses)
		}
		return msg
	}
	msg := fmt.Sprintf(
		"Found %d potential conflict(s) in %d of %d analyzed clause(s): %d contradiction, %d overlap, %d inconsistency. Overall risk: %s.",
		stats.TotalFlags,
		stats.ClausesWithConflicts,
		stats.ClausesAnalyzed,
		stats.ByType[domain.ConflictContradiction],
		stats.ByType[domain.ConflictOverlap],
		stats.ByType[domain.ConflictInconsistency],
		risk,
	)
	if stats.FailedClauses > 0 {
		msg += fmt.Sprintf(" %d clause(s) could not be analyzed.", stats.FailedClauses)
	}
	return msg
}

func recommendations(stats domain.ConflictStatistics, risk domain.Severity) []string {
	var out []string
	switch risk {
	case domain.SeverityCritical:
		out = append(out, "Resolve the critical conflicts before the draft proceeds and consult the issuing authority of the cited instruments.")
	case domain.SeverityHigh:
		out = append(out, "Review the high-severity findings with legal drafting counsel.")
	}
	if n := stats.ByType[domain.ConflictContradiction]; n > 0 {
		out = append(out, fmt.Sprintf("Harmonise %d contradicting provision(s) with the cited legislation or state an explicit derogation.", n))
	}
	if n := stats.ByType[domain.ConflictInconsistency]; n > 0 {
		out = append(out, fmt.Sprintf("Align procedural requirements such as deadlines, permits and sanctions in %d provision(s) with existing rules.", n))
	}
	if n := stats.ByType[domain.ConflictOverlap]; n > 0 {
		out = append(out, fmt.Sprintf("Consider referencing the existing provision instead of restating it in %d overlapping clause(s).", n))
	}
	if stats.FailedClauses > 0 {
		out = append(out, fmt.Sprintf("Re-run detection for %d clause(s) that could not be analyzed.", stats.FailedClauses))
	}
	if len(out) == 0 {
		out = append(out, "No harmonisation action is required against the indexed corpus.")
	}
	return out
}
