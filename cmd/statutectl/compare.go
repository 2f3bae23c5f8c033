package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

var (
	compareOldPath    string
	compareNewPath    string
	compareThreshold  float64
	compareExplain    bool
	compareNoSemantic bool
)

func init() {
	compareCmd.Flags().StringVar(&compareOldPath, "old", "", "Clauses of the previous version (JSON or text, - for stdin)")
	compareCmd.Flags().StringVar(&compareNewPath, "new", "", "Clauses of the new version (JSON or text)")
	compareCmd.Flags().Float64Var(&compareThreshold, "semantic-threshold", 0, "Override the semantic threshold (0 = configured)")
	compareCmd.Flags().BoolVar(&compareExplain, "explain", false, "Ask the explanation generator for legal implications")
	compareCmd.Flags().BoolVar(&compareNoSemantic, "no-semantic", false, "Disable embedding similarity and align on text only")
	_ = compareCmd.MarkFlagRequired("old")
	_ = compareCmd.MarkFlagRequired("new")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Diff two versions of a document clause by clause",
	Long: `Align the clauses of two document versions and report additions,
deletions, modifications and moves with significance scores.

Examples:
  statutectl compare --old v1.json --new v2.json
  statutectl compare --old v1.txt --new v2.txt --human`,
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, _ []string) error {
	oldClauses, err := readClauses(compareOldPath)
	if err != nil {
		return err
	}
	newClauses, err := readClauses(compareNewPath)
	if err != nil {
		return err
	}

	app, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	var opts domain.CompareOptions
	if compareThreshold > 0 {
		opts.SemanticThreshold = &compareThreshold
	}
	if cmd.Flags().Changed("explain") {
		opts.IncludeAIExplanations = &compareExplain
	}
	if compareNoSemantic {
		enabled := false
		opts.EnableSemanticAnalysis = &enabled
	}

	result, err := app.CompareUC.Compare(cmd.Context(), oldClauses, newClauses, opts)
	if err != nil {
		return err
	}
	if humanOutput {
		printComparison(os.Stdout, result)
		return nil
	}
	return outputJSON(result)
}
