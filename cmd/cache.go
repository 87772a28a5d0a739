package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the model response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit/miss counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Cache == nil {
			return eris.New("cache is disabled in configuration")
		}
		return printJSON(env.Cache.Stats())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached model responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Cache == nil {
			return eris.New("cache is disabled in configuration")
		}
		if err := env.Cache.ClearAll(ctx); err != nil {
			return eris.Wrap(err, "clear cache")
		}
		zap.L().Info("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
