// Package prompt builds the explanation prompts shared by the generation
// providers and decodes their JSON answers.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const maxExcerpt = 2000

func ChangeExplanation(diff domain.DocumentDiff) string {
	var b strings.Builder
	b.WriteString(`You are a legal analyst reviewing an amendment to a statute.
Return strict JSON object with keys:
explanation (string, one or two sentences), legal_implications (string).
No markdown, no extra keys.

`)
	fmt.Fprintf(&b, "Change type: %s\nClause: %s (%s)\n", diff.Kind, diff.Reference(), diff.ClauseType)
	if diff.OldText != nil {
		fmt.Fprintf(&b, "\nPrevious text:\n%s\n", excerpt(*diff.OldText))
	}
	if diff.NewText != nil {
		fmt.Fprintf(&b, "\nNew text:\n%s\n", excerpt(*diff.NewText))
	}
	return b.String()
}

func ConflictExplanation(clause domain.ClauseSegment, match domain.CorpusMatch, kind domain.ConflictType) string {
	return fmt.Sprintf(`You are a legal analyst checking a draft clause against existing legislation.
The pair was flagged as %s.
Return strict JSON object with keys:
explanation (string), legal_implications (string),
resolution_suggestions (array of strings), severity_factors (array of strings).
No markdown, no extra keys.

Draft clause %s:
%s

Existing provision from %q %s:
%s
`, kind, clause.Label(), excerpt(clause.Text), match.Title, match.Reference, excerpt(match.Text))
}

func DecodeChange(raw string) (domain.ChangeExplanation, error) {
	var out domain.ChangeExplanation
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &out); err != nil {
		return domain.ChangeExplanation{}, fmt.Errorf("parse change explanation json: %w", err)
	}
	if strings.TrimSpace(out.Explanation) == "" {
		return domain.ChangeExplanation{}, fmt.Errorf("parse change explanation json: empty explanation")
	}
	return out, nil
}

func DecodeConflict(raw string) (domain.ConflictExplanation, error) {
	var out domain.ConflictExplanation
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &out); err != nil {
		return domain.ConflictExplanation{}, fmt.Errorf("parse conflict explanation json: %w", err)
	}
	if strings.TrimSpace(out.Explanation) == "" {
		return domain.ConflictExplanation{}, fmt.Errorf("parse conflict explanation json: empty explanation")
	}
	if out.ResolutionSuggestions == nil {
		out.ResolutionSuggestions = []string{}
	}
	if out.SeverityFactors == nil {
		out.SeverityFactors = []string{}
	}
	return out, nil
}

// ExtractJSONObject trims chatter around the outermost JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt]) + "..."
}
