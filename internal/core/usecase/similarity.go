package usecase

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// textSimilarity blends normalized edit-distance similarity with word-level
// Jaccard similarity.
func textSimilarity(a, b string, cfg domain.AlignmentScoring) float64 {
	lev := levenshteinSimilarity(strings.ToLower(a), strings.ToLower(b))
	jac := jaccardSimilarity(a, b, cfg.MinWordLength)
	return clamp01(cfg.EditDistanceWeight*lev + cfg.JaccardWeight*jac)
}

func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func jaccardSimilarity(a, b string, minLen int) float64 {
	sa, sb := toWordSet(a, minLen), toWordSet(b, minLen)
	if len(sa) == 0 && len(sb) == 0 {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
			return 1
		}
		return 0
	}
	inter := 0
	for token := range sa {
		if _, ok := sb[token]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func toWordSet(s string, minLen int) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if utf8.RuneCountInString(token) >= minLen {
			out[token] = struct{}{}
		}
	}
	return out
}

func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// cosineSimilarity compares two vectors of the same model and dimension.
func cosineSimilarity(a, b domain.EmbeddingVector) (float64, error) {
	if a.Model != b.Model {
		return 0, fmt.Errorf("cosine: model mismatch %q vs %q", a.Model, b.Model)
	}
	if len(a.Values) != len(b.Values) || len(a.Values) == 0 {
		return 0, fmt.Errorf("cosine: dimension mismatch %d vs %d", len(a.Values), len(b.Values))
	}
	var dot, na, nb float64
	for i := range a.Values {
		x, y := float64(a.Values[i]), float64(b.Values[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("cosine: zero vector")
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
