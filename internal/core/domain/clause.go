package domain

import (
	"strconv"
	"strings"
)

// ClauseType is the closed hierarchy of statutory structural units.
type ClauseType string

const (
	ClauseChapter    ClauseType = "chapter"
	ClauseSection    ClauseType = "section"
	ClauseSubsection ClauseType = "sub-section"
	ClauseArticle    ClauseType = "article"
	ClauseParagraph  ClauseType = "paragraph"
	ClausePoint      ClauseType = "point"
	ClauseItem       ClauseType = "item"
	ClauseGeneral    ClauseType = "general"
)

var clauseTypeAliases = map[string]ClauseType{
	"chapter":     ClauseChapter,
	"bab":         ClauseChapter,
	"section":     ClauseSection,
	"bagian":      ClauseSection,
	"sub-section": ClauseSubsection,
	"subsection":  ClauseSubsection,
	"sub_section": ClauseSubsection,
	"paragraf":    ClauseSubsection,
	"article":     ClauseArticle,
	"pasal":       ClauseArticle,
	"paragraph":   ClauseParagraph,
	"ayat":        ClauseParagraph,
	"point":       ClausePoint,
	"huruf":       ClausePoint,
	"item":        ClauseItem,
	"angka":       ClauseItem,
	"general":     ClauseGeneral,
}

// ParseClauseType maps free-form upstream tags onto the closed enum.
// Unknown values become ClauseGeneral.
func ParseClauseType(raw string) ClauseType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := clauseTypeAliases[key]; ok {
		return t
	}
	return ClauseGeneral
}

func (t *ClauseType) UnmarshalText(text []byte) error {
	*t = ParseClauseType(string(text))
	return nil
}

func (t ClauseType) MarshalText() ([]byte, error) {
	if t == "" {
		return []byte(ClauseGeneral), nil
	}
	return []byte(t), nil
}

type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ClauseSegment is one structural unit produced by upstream segmentation.
type ClauseSegment struct {
	Text      string     `json:"text"`
	Reference string     `json:"reference,omitempty"`
	Type      ClauseType `json:"clause_type"`
	Order     int        `json:"sequence_order"`
	Pages     *PageRange `json:"page_range,omitempty"`
}

// Label returns the reference label, falling back to the sequence order.
func (c ClauseSegment) Label() string {
	if ref := strings.TrimSpace(c.Reference); ref != "" {
		return ref
	}
	return "#" + strconv.Itoa(c.Order)
}

// Normalized re-validates t so values built in code without UnmarshalText
// never reach the scoring tables raw.
func (t ClauseType) Normalized() ClauseType {
	return ParseClauseType(string(t))
}
