package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// corpusFile is the on-disk shape accepted by the index command.
type corpusFile struct {
	Document domain.CorpusDocument  `json:"document"`
	Clauses  []domain.ClauseSegment `json:"clauses"`
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// readClauses loads clauses from a JSON array, a {"clauses": [...]} object,
// or plain text where blank lines separate clauses.
func readClauses(path string) ([]domain.ClauseSegment, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, dataError("reading %s: %v", path, err)
	}
	clauses, err := parseClauses(raw)
	if err != nil {
		return nil, dataError("parsing %s: %v", path, err)
	}
	return clauses, nil
}

func parseClauses(raw []byte) ([]domain.ClauseSegment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}
	switch trimmed[0] {
	case '[':
		var clauses []domain.ClauseSegment
		if err := json.Unmarshal(trimmed, &clauses); err != nil {
			return nil, err
		}
		return withOrder(clauses), nil
	case '{':
		var wrapped struct {
			Clauses []domain.ClauseSegment `json:"clauses"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		return withOrder(wrapped.Clauses), nil
	default:
		return splitParagraphs(string(trimmed)), nil
	}
}

// withOrder fills sequence orders when the input left them all at zero.
func withOrder(clauses []domain.ClauseSegment) []domain.ClauseSegment {
	for _, c := range clauses {
		if c.Order != 0 {
			return clauses
		}
	}
	for i := range clauses {
		clauses[i].Order = i
	}
	return clauses
}

func splitParagraphs(text string) []domain.ClauseSegment {
	var clauses []domain.ClauseSegment
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		clauses = append(clauses, domain.ClauseSegment{
			Text:  block,
			Type:  domain.ClauseGeneral,
			Order: len(clauses),
		})
	}
	return clauses
}

func readCorpusFile(path string) (corpusFile, error) {
	raw, err := readInput(path)
	if err != nil {
		return corpusFile{}, dataError("reading %s: %v", path, err)
	}
	var file corpusFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return corpusFile{}, dataError("parsing %s: %v", path, err)
	}
	file.Clauses = withOrder(file.Clauses)
	return file, nil
}
