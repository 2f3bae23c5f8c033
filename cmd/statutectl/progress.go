package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func init() {
	rootCmd.AddCommand(watchProgressCmd)
}

var watchProgressCmd = &cobra.Command{
	Use:   "watch-progress [job-id]",
	Short: "Stream embedding progress events of a job from NATS",
	Long: `Subscribe to the progress subject of one job, or of every job when no
id is given, and print events until interrupted. Requires NATS_URL.

Examples:
  statutectl watch-progress compare-4f1c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatchProgress,
}

func runWatchProgress(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, _, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Progress == nil {
		return &exitError{code: ExitConfigError, err: fmt.Errorf("NATS_URL is not configured")}
	}

	jobID := ""
	if len(args) == 1 {
		jobID = args[0]
	}
	return app.Progress.Subscribe(ctx, jobID, func(p domain.EmbeddingProgress) {
		if humanOutput {
			fmt.Printf("batch %d/%d  %d/%d embedded  hits=%d failed=%d  eta=%s\n",
				p.BatchIndex+1, p.BatchCount, p.Completed, p.Total, p.CacheHits, p.Failed, p.ETA)
			return
		}
		_ = outputJSONCompact(p)
	})
}
