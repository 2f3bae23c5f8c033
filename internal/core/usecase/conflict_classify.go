package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// modalPair holds the two opposite forms of one legal modality. Negative
// forms are matched first and consume their tokens, so "tidak boleh" is never
// also read as "boleh".
type modalPair struct {
	name     string
	positive []string
	negative []string
}

var modalPairs = []modalPair{
	{
		name:     "permission",
		positive: []string{"diperbolehkan", "dibolehkan", "diizinkan", "boleh", "dapat", "permitted", "allowed", "may"},
		negative: []string{"dilarang", "tidak boleh", "tidak diperbolehkan", "tidak dibolehkan", "tidak diizinkan", "tidak dapat", "prohibited", "forbidden", "not permitted", "not allowed", "may not", "shall not"},
	},
	{
		name:     "obligation",
		positive: []string{"wajib", "harus", "diwajibkan", "required", "must", "shall"},
		negative: []string{"tidak wajib", "tidak harus", "tidak diwajibkan", "opsional", "optional", "not required"},
	},
	{
		name:     "applicability",
		positive: []string{"berlaku", "applies", "applicable"},
		negative: []string{"tidak berlaku", "dicabut", "does not apply", "not applicable", "revoked"},
	},
	{
		name:     "validity",
		positive: []string{"sah", "valid"},
		negative: []string{"tidak sah", "batal", "invalid", "void"},
	},
	{
		name:     "authority",
		positive: []string{"berwenang", "authorized"},
		negative: []string{"tidak berwenang", "unauthorized", "not authorized"},
	},
}

var proceduralKeywords = []string{
	"prosedur", "tata cara", "persyaratan", "syarat", "jangka waktu", "paling lambat",
	"permohonan", "izin", "perizinan", "pendaftaran", "sanksi", "denda",
	"procedure", "deadline", "application", "registration", "requirement", "permit", "penalty",
}

type modalProfile map[string]struct{ positive, negative bool }

// modalities reports, per modal pair, which polarities occur in text.
func modalities(text string) modalProfile {
	tokens := splitWordsLower(text)
	used := make([]bool, len(tokens))
	out := make(modalProfile, len(modalPairs))
	for _, pair := range modalPairs {
		for _, phrase := range pair.negative {
			if consumePhrase(tokens, used, phrase) {
				p := out[pair.name]
				p.negative = true
				out[pair.name] = p
			}
		}
	}
	for _, pair := range modalPairs {
		for _, phrase := range pair.positive {
			if consumePhrase(tokens, used, phrase) {
				p := out[pair.name]
				p.positive = true
				out[pair.name] = p
			}
		}
	}
	return out
}

// contradictingModality returns the first modality held with opposite
// polarity by the two texts, checking both directions.
func contradictingModality(a, b string) (string, bool) {
	pa, pb := modalities(a), modalities(b)
	for _, pair := range modalPairs {
		x, y := pa[pair.name], pb[pair.name]
		if (x.positive && y.negative) || (x.negative && y.positive) {
			return pair.name, true
		}
	}
	return "", false
}

// consumePhrase marks every unused occurrence of phrase in tokens.
func consumePhrase(tokens []string, used []bool, phrase string) bool {
	words := strings.Fields(phrase)
	found := false
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for k, w := range words {
			if used[i+k] || tokens[i+k] != w {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		for k := range words {
			used[i+k] = true
		}
		found = true
	}
	return found
}

func containsPhrase(tokens []string, phrase string) bool {
	words := strings.Fields(phrase)
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for k, w := range words {
			if tokens[i+k] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func sharesProceduralKeyword(a, b string) bool {
	ta, tb := splitWordsLower(a), splitWordsLower(b)
	for _, kw := range proceduralKeywords {
		if containsPhrase(ta, kw) && containsPhrase(tb, kw) {
			return true
		}
	}
	return false
}

// classifyConflict picks the conflict type in priority order: near-duplicate
// overlap, opposite modality, procedural inconsistency, plain overlap.
func classifyConflict(input, matched string, similarity float64, cfg domain.ConflictScoring) domain.ConflictType {
	switch {
	case similarity > cfg.OverlapSimilarity:
		return domain.ConflictOverlap
	default:
		if _, ok := contradictingModality(input, matched); ok {
			return domain.ConflictContradiction
		}
		if similarity > cfg.InconsistencySimilarity && sharesProceduralKeyword(input, matched) {
			return domain.ConflictInconsistency
		}
		return domain.ConflictOverlap
	}
}

func conflictConfidence(similarity float64, clauseType domain.ClauseType, match domain.CorpusMatch, cfg domain.ConflictScoring) float64 {
	conf := similarity
	if w, ok := cfg.ClauseTypeWeights[clauseType.Normalized()]; ok && w > 0 {
		conf *= w
	}
	if strings.EqualFold(match.Jurisdiction, domain.JurisdictionNational) {
		conf *= cfg.NationalMultiplier
	}
	if strings.EqualFold(match.DocumentType, domain.DocumentTypeStatute) {
		conf *= cfg.StatuteMultiplier
	}
	return clamp01(conf)
}

func conflictSeverity(kind domain.ConflictType, confidence float64, cfg domain.ConflictScoring) domain.Severity {
	thresholds, ok := cfg.Severity[kind]
	if !ok {
		return domain.SeverityLow
	}
	return thresholds.Grade(confidence)
}

type instrumentPattern struct {
	re   *regexp.Regexp
	kind domain.InstrumentType
}

var instrumentPatterns = []instrumentPattern{
	{regexp.MustCompile(`(?i)\b(?:peraturan pemerintah pengganti undang-undang|perppu)\b`), domain.InstrumentStatute},
	{regexp.MustCompile(`(?i)\b(?:undang-undang|uu)\b`), domain.InstrumentStatute},
	{regexp.MustCompile(`(?i)\b(?:peraturan pemerintah|pp)\b`), domain.InstrumentGovernmentRegulation},
	{regexp.MustCompile(`(?i)\b(?:peraturan presiden|keputusan presiden|perpres|keppres)\b`), domain.InstrumentPresidentialDecree},
	{regexp.MustCompile(`(?i)\b(?:peraturan menteri|keputusan menteri|permen|kepmen)\b`), domain.InstrumentMinisterialRegulation},
	{regexp.MustCompile(`(?i)\b(?:peraturan daerah|perda)\b`), domain.InstrumentRegionalRegulation},
}

var numberYearPattern = regexp.MustCompile(`(?i)(?:nomor|no\.?)?\s*(\d+[a-z]?)\s*(?:tahun|/)\s*(\d{4})\b`)

var issuingAuthority = map[domain.InstrumentType]string{
	domain.InstrumentStatute:               "DPR RI dan Presiden",
	domain.InstrumentGovernmentRegulation:  "Presiden",
	domain.InstrumentPresidentialDecree:    "Presiden",
	domain.InstrumentMinisterialRegulation: "Menteri",
	domain.InstrumentRegionalRegulation:    "Kepala Daerah dan DPRD",
}

// instrumentType returns the instrument named earliest in the title.
func instrumentType(title string) domain.InstrumentType {
	best, bestAt, bestLen := domain.InstrumentUnknown, -1, 0
	for _, p := range instrumentPatterns {
		loc := p.re.FindStringIndex(title)
		if loc == nil {
			continue
		}
		length := loc[1] - loc[0]
		if bestAt < 0 || loc[0] < bestAt || (loc[0] == bestAt && length > bestLen) {
			best, bestAt, bestLen = p.kind, loc[0], length
		}
	}
	return best
}

func buildCitation(match domain.CorpusMatch) domain.Citation {
	kind := instrumentType(match.Title)
	if kind == domain.InstrumentUnknown && strings.EqualFold(match.DocumentType, domain.DocumentTypeStatute) {
		kind = domain.InstrumentStatute
	}
	c := domain.Citation{
		Title:            match.Title,
		InstrumentType:   kind,
		Jurisdiction:     match.Jurisdiction,
		Status:           match.Status,
		IssuingAuthority: "unknown",
	}
	if authority, ok := issuingAuthority[kind]; ok {
		c.IssuingAuthority = authority
	}
	if m := numberYearPattern.FindStringSubmatch(match.Title); m != nil {
		c.Number = strings.ToUpper(m[1])
		c.Year, _ = strconv.Atoi(m[2])
	}
	if c.Jurisdiction == "" {
		c.Jurisdiction = domain.JurisdictionNational
		if kind == domain.InstrumentRegionalRegulation {
			c.Jurisdiction = "regional"
		}
	}
	if c.Status == "" {
		c.Status = domain.StatusActive
	}
	return c
}
