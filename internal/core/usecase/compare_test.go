package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func article(order int, ref, text string) domain.ClauseSegment {
	return domain.ClauseSegment{Text: text, Reference: ref, Type: domain.ClauseArticle, Order: order}
}

func sampleDocument() []domain.ClauseSegment {
	return []domain.ClauseSegment{
		article(1, "Pasal 1", "Pasal 1. Setiap warga negara berhak atas pendidikan dasar."),
		article(2, "Pasal 2", "Pasal 2. Pemerintah wajib membiayai pendidikan dasar tanpa pungutan."),
		article(3, "Pasal 3", "Pasal 3. Kurikulum nasional ditetapkan oleh menteri."),
		article(4, "Pasal 4", "Pasal 4. Sekolah swasta dapat menerima bantuan operasional."),
		article(5, "Pasal 5", "Pasal 5. Pelanggaran dikenakan sanksi administratif."),
	}
}

type fakeChangeExplainer struct {
	err   error
	calls int
}

func (f *fakeChangeExplainer) ExplainChange(_ context.Context, d domain.DocumentDiff) (domain.ChangeExplanation, error) {
	f.calls++
	if f.err != nil {
		return domain.ChangeExplanation{}, f.err
	}
	return domain.ChangeExplanation{Explanation: "generated " + d.Reference(), LegalImplication: "implication"}, nil
}

func (f *fakeChangeExplainer) ExplainConflict(context.Context, domain.ClauseSegment, domain.CorpusMatch, domain.ConflictType) (domain.ConflictExplanation, error) {
	return domain.ConflictExplanation{}, errors.New("not used")
}

func newTestCompare(provider *fakeProvider, explainer *fakeChangeExplainer) *CompareUseCase {
	var embeddings *EmbeddingService
	if provider != nil {
		embeddings = newTestEmbeddingService(provider, newMapCache(), 16)
	}
	uc := NewCompareUseCase(embeddings, nil, &directCaller{}, domain.ScoringConfig{}, DefaultCompareSettings(), nil)
	if explainer != nil {
		uc.explainer = explainer
	}
	return uc
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func TestCompareExactCopyHasNoChanges(t *testing.T) {
	uc := newTestCompare(&fakeProvider{}, nil)
	doc := sampleDocument()

	result, err := uc.Compare(context.Background(), doc, sampleDocument(), domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Changes) != 0 || result.Statistics.TotalChanges != 0 {
		t.Fatalf("expected no changes, got %+v", result.Changes)
	}
	if result.Summary != noChangesSummary {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if result.Statistics.Unchanged != len(doc) || result.Verdict != "identical" {
		t.Fatalf("unexpected statistics %+v verdict %q", result.Statistics, result.Verdict)
	}
}

func TestCompareReportsAddedArticle(t *testing.T) {
	uc := newTestCompare(&fakeProvider{}, nil)
	oldDoc := []domain.ClauseSegment{article(1, "Pasal 1", "Pasal 1. X berhak atas Y.")}
	newDoc := append(append([]domain.ClauseSegment(nil), oldDoc...), article(2, "Pasal 2", "Pasal 2. Z wajib menyediakan W."))

	result, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected one change, got %+v", result.Changes)
	}
	diff := result.Changes[0]
	if diff.Kind != domain.ChangeAdded || diff.NewReference != "Pasal 2" {
		t.Fatalf("unexpected diff %+v", diff)
	}
	if diff.OldText != nil || diff.NewText == nil {
		t.Fatalf("added diff must carry only new text")
	}
	if diff.Significance < 4 {
		t.Fatalf("expected significance >= 4, got %d", diff.Significance)
	}
	if result.Statistics.Additions != 1 {
		t.Fatalf("expected one addition, got %+v", result.Statistics)
	}
}

func TestCompareConservationAndTextPresence(t *testing.T) {
	uc := newTestCompare(nil, nil)
	oldDoc := sampleDocument()
	newDoc := []domain.ClauseSegment{
		article(1, "Pasal 1", "Pasal 1. Setiap warga negara berhak atas pendidikan dasar."),
		article(2, "Pasal 2", "Pasal 2. Pemerintah wajib membiayai pendidikan dasar dan menengah tanpa pungutan."),
		article(3, "Pasal 3", "Pasal 3. Kurikulum nasional ditetapkan oleh menteri."),
		article(4, "Pasal 4A", "Pasal 4A. Guru honorer berhak atas tunjangan profesi setiap bulan."),
		article(5, "Pasal 5", "Pasal 5. Pelanggaran dikenakan sanksi administratif."),
	}

	result, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	s := result.Statistics
	if s.Additions+s.Deletions+s.Modifications+s.Moves != s.TotalChanges || s.TotalChanges != len(result.Changes) {
		t.Fatalf("statistics do not add up: %+v", s)
	}
	if s.Modifications != 1 || s.Additions != 1 || s.Deletions != 1 {
		t.Fatalf("unexpected change mix %+v", s)
	}
	for _, d := range result.Changes {
		switch d.Kind {
		case domain.ChangeAdded:
			if d.OldText != nil || d.NewText == nil {
				t.Fatalf("bad added diff %+v", d)
			}
		case domain.ChangeDeleted:
			if d.OldText == nil || d.NewText != nil {
				t.Fatalf("bad deleted diff %+v", d)
			}
		default:
			if d.OldText == nil || d.NewText == nil || d.Similarity == nil {
				t.Fatalf("bad %s diff %+v", d.Kind, d)
			}
		}
		if d.Significance < 1 || d.Significance > 5 {
			t.Fatalf("significance out of range: %d", d.Significance)
		}
	}
	// position 4 carries the deletion before the addition
	if result.Changes[1].Kind != domain.ChangeDeleted || result.Changes[2].Kind != domain.ChangeAdded {
		t.Fatalf("unexpected ordering %+v", result.Changes)
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	oldDoc := sampleDocument()
	newDoc := []domain.ClauseSegment{
		article(1, "Pasal 1", "Pasal 1. Setiap warga negara berhak atas pendidikan menengah."),
		article(2, "Pasal 2", "Pasal 2. Pemerintah wajib membiayai pendidikan dasar tanpa pungutan."),
		article(3, "Pasal 6", "Pasal 6. Ketentuan peralihan berlaku satu tahun."),
	}
	first, err := newTestCompare(&fakeProvider{}, nil).Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	second, err := newTestCompare(&fakeProvider{}, nil).Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !reflect.DeepEqual(first.Changes, second.Changes) || first.Summary != second.Summary {
		t.Fatalf("comparison is not deterministic")
	}
}

func TestCompareEmptySideReportsPureAdditions(t *testing.T) {
	uc := newTestCompare(&fakeProvider{}, nil)
	result, err := uc.Compare(context.Background(), nil, sampleDocument(), domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Statistics.Additions != 5 || result.Statistics.TotalChanges != 5 {
		t.Fatalf("expected 5 additions, got %+v", result.Statistics)
	}

	if _, err := uc.Compare(context.Background(), nil, nil, domain.CompareOptions{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for two empty sides, got %v", err)
	}
}

func TestCompareRejectsDuplicateOrderAndEmptyText(t *testing.T) {
	uc := newTestCompare(nil, nil)
	dup := []domain.ClauseSegment{article(1, "Pasal 1", "a b c"), article(1, "Pasal 2", "d e f")}
	if _, err := uc.Compare(context.Background(), dup, nil, domain.CompareOptions{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for duplicate order, got %v", err)
	}
	empty := []domain.ClauseSegment{article(1, "Pasal 1", "   ")}
	if _, err := uc.Compare(context.Background(), empty, sampleDocument(), domain.CompareOptions{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty clause, got %v", err)
	}
}

func TestCompareDetectsMovedClause(t *testing.T) {
	uc := newTestCompare(nil, nil)
	oldDoc := sampleDocument()
	moved := oldDoc[0]
	newDoc := []domain.ClauseSegment{}
	for i, c := range oldDoc[1:] {
		c.Order = i + 1
		newDoc = append(newDoc, c)
	}
	moved.Order = 5
	newDoc = append(newDoc, moved)

	result, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{EnableSemanticAnalysis: boolPtr(false)})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Kind != domain.ChangeMoved {
		t.Fatalf("expected a single move, got %+v", result.Changes)
	}
	if got := result.Changes[0].Significance; got != 4 {
		t.Fatalf("expected moved article significance 4, got %d", got)
	}
}

func TestCompareDegradesWhenEmbeddingUnavailable(t *testing.T) {
	provider := &fakeProvider{failAll: domain.WrapTerminal(domain.ErrAuthRejected, "embed", errors.New("401"))}
	uc := newTestCompare(provider, nil)

	result, err := uc.Compare(context.Background(), sampleDocument(), sampleDocument(), domain.CompareOptions{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Metadata.SemanticDegraded || len(result.Metadata.Warnings) == 0 {
		t.Fatalf("expected degraded metadata, got %+v", result.Metadata)
	}
	if result.Statistics.TotalChanges != 0 {
		t.Fatalf("expected text-only comparison to find no changes")
	}
}

func TestCompareBatchSizeBoundsProviderCalls(t *testing.T) {
	oldDoc := []domain.ClauseSegment{
		article(1, "Pasal 1", "Pasal 1. Setiap warga negara berhak atas pendidikan dasar."),
		article(2, "Pasal 2", "Pasal 2. Pemerintah wajib membiayai pendidikan dasar."),
	}
	newDoc := []domain.ClauseSegment{
		article(1, "Pasal 1", "Pasal 1. Setiap penduduk berhak atas pendidikan menengah."),
		article(2, "Pasal 2", "Pasal 2. Pemerintah daerah wajib membiayai pendidikan menengah."),
	}

	provider := &fakeProvider{}
	uc := newTestCompare(provider, nil)
	if _, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{BatchSize: intPtr(1)}); err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if provider.callCount() != 4 {
		t.Fatalf("expected one provider call per text with batch_size=1, got %d", provider.callCount())
	}

	provider = &fakeProvider{}
	uc = newTestCompare(provider, nil)
	if _, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{}); err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected a single provider call with the default batch size, got %d", provider.callCount())
	}
}

func TestCompareExplanationsFallBackToTemplate(t *testing.T) {
	explainer := &fakeChangeExplainer{err: domain.WrapError(domain.ErrTransientRemote, "explain", errors.New("503"))}
	uc := newTestCompare(nil, explainer)
	oldDoc := []domain.ClauseSegment{article(1, "Pasal 1", "Setiap orang wajib membayar pajak tahunan tepat waktu.")}
	newDoc := []domain.ClauseSegment{article(1, "Pasal 1", "Setiap orang wajib membayar pajak bulanan tepat waktu.")}

	result, err := uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{IncludeAIExplanations: boolPtr(true)})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Changes) != 1 || explainer.calls != 1 {
		t.Fatalf("expected one explained change, got %d changes and %d calls", len(result.Changes), explainer.calls)
	}
	exp := result.Changes[0].Explanation
	if !strings.Contains(exp, `Removed: "tahunan"`) || !strings.Contains(exp, `Added: "bulanan"`) {
		t.Fatalf("unexpected templated explanation %q", exp)
	}

	explainer.err = nil
	result, err = uc.Compare(context.Background(), oldDoc, newDoc, domain.CompareOptions{IncludeAIExplanations: boolPtr(true)})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Changes[0].Explanation != "generated Pasal 1" || result.Changes[0].LegalImplication != "implication" {
		t.Fatalf("expected generated explanation, got %+v", result.Changes[0])
	}
}

func TestTextSimilarityDecreasesWithAppendedText(t *testing.T) {
	cfg := domain.DefaultScoringConfig().Alignment
	base := "Setiap orang berhak atas perlindungan hukum"
	prev := textSimilarity(base, base, cfg)
	for _, suffix := range []string{" yang", " yang adil", " yang adil dan setara", " yang adil dan setara bagi seluruh warga"} {
		got := textSimilarity(base, base+suffix, cfg)
		if got >= prev {
			t.Fatalf("similarity did not decrease for suffix %q: %v >= %v", suffix, got, prev)
		}
		prev = got
	}
}

func TestSignificanceTable(t *testing.T) {
	cfg := domain.DefaultScoringConfig().Significance
	cases := []struct {
		kind  domain.ChangeKind
		ctype domain.ClauseType
		sim   float64
		want  int
	}{
		{domain.ChangeAdded, domain.ClauseArticle, 0, 5},
		{domain.ChangeDeleted, domain.ClauseChapter, 0, 5},
		{domain.ChangeMoved, domain.ClauseArticle, 0, 4},
		{domain.ChangeModified, domain.ClausePoint, 0.9, 2},
		{domain.ChangeModified, domain.ClauseGeneral, 1, 1},
		{domain.ChangeModified, domain.ClauseParagraph, 0.2, 5},
		{domain.ChangeAdded, domain.ClauseType("bab"), 0, 5},
	}
	for _, tc := range cases {
		if got := significance(tc.kind, tc.ctype, tc.sim, cfg); got != tc.want {
			t.Fatalf("%s %s sim=%v: got %d want %d", tc.kind, tc.ctype, tc.sim, got, tc.want)
		}
	}
}

func TestClassifyMappingOrder(t *testing.T) {
	cfg := domain.DefaultScoringConfig().Alignment
	cases := []struct {
		name  string
		m     domain.ClauseMapping
		class domain.MappingClass
	}{
		{"exact", domain.ClauseMapping{Old: article(1, "", "a"), New: article(1, "", "a"), Score: 1}, domain.MappingExact},
		{"exact displaced", domain.ClauseMapping{Old: article(1, "", "a"), New: article(9, "", "a"), OldIndex: 0, NewIndex: 3, Score: 1}, domain.MappingMoved},
		{"moved", domain.ClauseMapping{Old: article(1, "", "a"), New: article(9, "", "b"), OldIndex: 0, NewIndex: 4, Score: 0.96}, domain.MappingMoved},
		{"similar near", domain.ClauseMapping{Old: article(1, "", "a"), New: article(2, "", "b"), OldIndex: 0, NewIndex: 2, Score: 0.96}, domain.MappingSimilar},
		{"restructured", domain.ClauseMapping{Old: article(1, "", "a"), New: article(2, "", "b"), Score: 0.75}, domain.MappingRestructured},
	}
	for _, tc := range cases {
		if got := classifyMapping(tc.m, cfg); got != tc.class {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.class)
		}
	}
}
