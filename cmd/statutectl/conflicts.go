package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

var (
	conflictsPath         string
	conflictsExclude      string
	conflictsThreshold    float64
	conflictsMax          int
	conflictsJurisdiction string
	conflictsTypes        []string
	conflictsExplain      bool
)

func init() {
	conflictsCmd.Flags().StringVar(&conflictsPath, "clauses", "", "Clauses to check (JSON or text, - for stdin)")
	conflictsCmd.Flags().StringVar(&conflictsExclude, "exclude", "", "Corpus document id to leave out of the search")
	conflictsCmd.Flags().Float64Var(&conflictsThreshold, "threshold", 0, "Minimum similarity for a match (0 = configured)")
	conflictsCmd.Flags().IntVar(&conflictsMax, "max-per-clause", 0, "Maximum conflicts reported per clause (0 = configured)")
	conflictsCmd.Flags().StringVar(&conflictsJurisdiction, "jurisdiction", "", "Restrict the corpus to one jurisdiction")
	conflictsCmd.Flags().StringSliceVar(&conflictsTypes, "types", nil, "Corpus document types to search")
	conflictsCmd.Flags().BoolVar(&conflictsExplain, "explain", false, "Enrich flags with generated explanations")
	_ = conflictsCmd.MarkFlagRequired("clauses")
	rootCmd.AddCommand(conflictsCmd)
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Detect conflicts between clauses and the indexed legal corpus",
	Long: `Search the legal corpus for clauses similar to the input and classify
each match as a contradiction, overlap or inconsistency.

Examples:
  statutectl conflicts --clauses draft.json
  statutectl conflicts --clauses draft.txt --exclude uu-7-2014 --types statute --human`,
	RunE: runConflicts,
}

func runConflicts(cmd *cobra.Command, _ []string) error {
	clauses, err := readClauses(conflictsPath)
	if err != nil {
		return err
	}

	app, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	opts := domain.DetectOptions{DocumentTypes: conflictsTypes}
	if conflictsThreshold > 0 {
		opts.SimilarityThreshold = &conflictsThreshold
	}
	if conflictsMax > 0 {
		opts.MaxConflictsPerClause = &conflictsMax
	}
	if cmd.Flags().Changed("jurisdiction") {
		opts.JurisdictionFilter = &conflictsJurisdiction
	}
	if cmd.Flags().Changed("explain") {
		opts.IncludeAIExplanations = &conflictsExplain
	}

	result, err := app.ConflictUC.DetectConflicts(cmd.Context(), clauses, conflictsExclude, opts)
	if err != nil {
		return err
	}
	if humanOutput {
		printConflicts(os.Stdout, result)
		return nil
	}
	return outputJSON(result)
}
