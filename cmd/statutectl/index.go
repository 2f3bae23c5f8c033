package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index corpus documents for conflict detection",
	Long: `Embed and store corpus documents. Each file holds one document:

  {"document": {"id": "uu-7-2014", "title": "...", "jurisdiction": "national",
                "document_type": "statute"},
   "clauses": [{"text": "...", "reference": "Pasal 1", "clause_type": "article"}]}

Re-indexing a document replaces its previous clauses.

Examples:
  statutectl index corpus/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

type indexResult struct {
	File           string `json:"file"`
	DocumentID     string `json:"document_id"`
	IndexedClauses int    `json:"indexed_clauses"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	files := make([]corpusFile, 0, len(args))
	for _, path := range args {
		file, err := readCorpusFile(path)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	app, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	results := make([]indexResult, 0, len(files))
	for i, file := range files {
		n, err := app.CorpusUC.IndexDocument(cmd.Context(), file.Document, file.Clauses)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", args[i], err)
		}
		results = append(results, indexResult{File: args[i], DocumentID: file.Document.ID, IndexedClauses: n})
		if humanOutput {
			fmt.Printf("indexed %-24s %4d clauses  (%s)\n", file.Document.ID, n, args[i])
		}
	}
	if humanOutput {
		return nil
	}
	return outputJSON(results)
}
