package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const excerptMaxLen = 70

type ErrorResponse struct {
	Error    string `json:"error"`
	Attempts int    `json:"attempts,omitempty"`
}

func outputJSON(v any) error {
	return outputJSONTo(os.Stdout, v)
}

func outputJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputJSONCompact(v any) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}

func printComparison(w io.Writer, result *domain.DocumentComparisonResult) {
	fmt.Fprintf(w, "%s\n", result.Summary)
	fmt.Fprintf(w, "verdict: %s\n\n", result.Verdict)
	for _, change := range result.Changes {
		label := change.Reference()
		if label == "" {
			label = "#" + strconv.Itoa(change.Position)
		}
		fmt.Fprintf(w, "  %-10s %-12s %3d  %s\n",
			change.Kind, label, change.Significance,
			truncate(change.Explanation, excerptMaxLen))
	}
}

func printConflicts(w io.Writer, result *domain.ConflictDetectionResult) {
	fmt.Fprintf(w, "%s\n", result.Summary)
	fmt.Fprintf(w, "overall risk: %s  compatibility: %.2f\n\n", result.Risk, result.Compatibility)
	for _, flag := range result.Flags {
		fmt.Fprintf(w, "  clause %-4d %-14s %-8s %.2f  %s\n",
			flag.ClauseIndex, flag.Type, flag.Severity, flag.Confidence,
			truncate(flag.MatchedTitle, excerptMaxLen))
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(w, "  clause %-4d failed in %s after %d attempt(s): %s\n",
			failure.ClauseIndex, failure.Operation, failure.Attempts, failure.Error)
	}
	if len(result.Recommendations) > 0 {
		fmt.Fprintln(w, "\nrecommendations:")
		for _, rec := range result.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
