package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Multi-provider LLM debate and cost-aware routing engine",
	Long:  "Runs structured multi-model debates, routes tasks to providers under per-workspace budgets, and scores outcomes for approval.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
