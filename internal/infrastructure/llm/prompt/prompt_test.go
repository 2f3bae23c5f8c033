package prompt

import (
	"strings"
	"testing"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func TestChangeExplanationIncludesBothTexts(t *testing.T) {
	oldText, newText := "lama", "baru"
	p := ChangeExplanation(domain.DocumentDiff{
		Kind:         domain.ChangeModified,
		OldText:      &oldText,
		NewText:      &newText,
		NewReference: "Pasal 3",
		ClauseType:   domain.ClauseArticle,
	})
	for _, want := range []string{"modified", "Pasal 3", "Previous text:\nlama", "New text:\nbaru"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestDecodeConflictToleratesChatter(t *testing.T) {
	raw := "Sure!\n```json\n{\"explanation\":\"clash\",\"legal_implications\":\"void\",\"resolution_suggestions\":[\"align\"]}\n```"
	got, err := DecodeConflict(raw)
	if err != nil {
		t.Fatalf("DecodeConflict() error = %v", err)
	}
	if got.Explanation != "clash" || len(got.ResolutionSuggestions) != 1 {
		t.Fatalf("unexpected decode %+v", got)
	}
	if got.SeverityFactors == nil {
		t.Fatalf("expected non-nil severity factors")
	}
}

func TestDecodeChangeRejectsEmptyExplanation(t *testing.T) {
	if _, err := DecodeChange(`{"explanation":"  "}`); err == nil {
		t.Fatalf("expected error for empty explanation")
	}
}
