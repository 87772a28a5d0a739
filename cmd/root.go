package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lead-engine",
	Short: "Signal scoring and lead classification pipeline",
	Long:  "Classifies raw text signals against an ICP via a local model, applies deterministic scoring heuristics, and manages the resulting lead lifecycle.",
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
