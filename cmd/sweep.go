package main

import (
	"github.com/spf13/cobra"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Auto-park leads that have gone stale without activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Manager.AutoPark(ctx, sweepDryRun)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report candidates without parking them")
	rootCmd.AddCommand(sweepCmd)
}
