package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const defaultMaxChars = 8000

// normalizeText unifies line endings, collapses whitespace and caps the
// length at maxChars runes, preferring to cut at a sentence boundary.
func normalizeText(text string, maxChars int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return truncateAtSentence(text, maxChars)
}

func truncateAtSentence(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	head := runes[:maxChars]
	cut := -1
	for i := len(head) - 1; i >= maxChars/2; i-- {
		switch head[i] {
		case '.', '!', '?', ';':
			cut = i + 1
		}
		if cut > 0 {
			break
		}
	}
	if cut < 0 {
		cut = maxChars
	}
	return strings.TrimSpace(string(head[:cut]))
}

// cacheKey identifies a vector by model and normalised content.
func cacheKey(modelID, normalized string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}
