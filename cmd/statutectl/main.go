// Package main provides the statutectl CLI entry point.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/statute-analyzer/internal/bootstrap"
	"github.com/kirillkom/statute-analyzer/internal/config"
	"github.com/kirillkom/statute-analyzer/internal/observability/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	humanOutput bool
	envFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "statutectl",
	Short: "Compare statute versions and detect conflicts with a legal corpus",
	Long: `statutectl runs the statute analyzer in-process.

It reads clause lists as JSON, uses the same embedding providers, caches
and corpus backends as the API (configured through the environment) and
writes results as JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.Version = Version
}

// loadApp wires the application from the environment. The caller must Close it.
func loadApp(ctx context.Context) (*bootstrap.App, config.Config, error) {
	_ = godotenv.Load(envFile)
	cfg := config.Load()
	logger := logging.New(os.Stderr, "statutectl", cfg.LogLevel, "text")
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, &exitError{code: ExitConfigError, err: err}
	}
	return app, cfg, nil
}
