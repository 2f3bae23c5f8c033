package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheClear bool

func init() {
	cacheStatsCmd.Flags().BoolVar(&cacheClear, "clear", false, "Clear the embedding caches, including the shared tier")
	rootCmd.AddCommand(cacheStatsCmd)
}

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Show embedding cache configuration and statistics",
	Long: `Show the local embedding cache statistics of this process. With --clear
the local cache and the shared Redis tier (when configured) are emptied.`,
	RunE: runCacheStats,
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	app, cfg, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	if cacheClear {
		if err := app.Embeddings.ClearCache(cmd.Context()); err != nil {
			return err
		}
	}
	stats := app.Embeddings.CacheStats()
	if humanOutput {
		fmt.Printf("model:     %s\n", app.Embeddings.ModelID())
		fmt.Printf("entries:   %d / %d\n", stats.Size, stats.Capacity)
		fmt.Printf("shared:    %t\n", cfg.RedisAddr != "")
		fmt.Printf("cleared:   %t\n", cacheClear)
		return nil
	}
	return outputJSON(map[string]any{
		"model":        app.Embeddings.ModelID(),
		"shared_cache": cfg.RedisAddr != "",
		"cleared":      cacheClear,
		"stats":        stats,
	})
}
