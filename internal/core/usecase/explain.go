package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const maxSpanWords = 25

// wordDiff returns the words of a removed from b and the words of b added
// relative to a, using a longest common subsequence over words.
func wordDiff(a, b string) (removed, added []string) {
	wa, wb := strings.Fields(a), strings.Fields(b)
	n, m := len(wa), len(wb)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if strings.EqualFold(wa[i], wb[j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case strings.EqualFold(wa[i], wb[j]):
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			removed = append(removed, wa[i])
			i++
		default:
			added = append(added, wb[j])
			j++
		}
	}
	removed = append(removed, wa[i:]...)
	added = append(added, wb[j:]...)
	return removed, added
}

func changeMagnitude(similarity float64, cfg domain.AlignmentScoring) string {
	switch {
	case similarity < cfg.MajorBelow:
		return "Major"
	case similarity < cfg.ModerateBelow:
		return "Moderate"
	default:
		return "Minor"
	}
}

// templateExplanation describes a change without any generation service.
func templateExplanation(d domain.DocumentDiff, cfg domain.AlignmentScoring) string {
	label := d.Reference()
	if label == "" {
		label = fmt.Sprintf("clause at position %d", d.Position)
	}
	switch d.Kind {
	case domain.ChangeAdded:
		return fmt.Sprintf("New %s %s was added.", d.ClauseType, label)
	case domain.ChangeDeleted:
		return fmt.Sprintf("%s %s was removed.", capitalize(string(d.ClauseType)), label)
	}

	var oldText, newText string
	if d.OldText != nil {
		oldText = *d.OldText
	}
	if d.NewText != nil {
		newText = *d.NewText
	}
	removed, added := wordDiff(oldText, newText)

	var b strings.Builder
	if d.Kind == domain.ChangeMoved {
		fmt.Fprintf(&b, "%s %s was moved to position %d.", capitalize(string(d.ClauseType)), label, d.Position)
		if len(removed) == 0 && len(added) == 0 {
			return b.String()
		}
		b.WriteString(" ")
	}
	sim := 1.0
	if d.Similarity != nil {
		sim = *d.Similarity
	}
	fmt.Fprintf(&b, "[%s] %s modified.", changeMagnitude(sim, cfg), label)
	if len(removed) > 0 {
		fmt.Fprintf(&b, " Removed: %q.", joinSpan(removed))
	}
	if len(added) > 0 {
		fmt.Fprintf(&b, " Added: %q.", joinSpan(added))
	}
	return b.String()
}

func joinSpan(words []string) string {
	if len(words) > maxSpanWords {
		return strings.Join(words[:maxSpanWords], " ") + " ..."
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
