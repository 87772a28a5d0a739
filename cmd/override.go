package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	overrideReason string
	overrideActor  string
)

var overrideCmd = &cobra.Command{
	Use:   "override <lead-id> <score>",
	Short: "Manually override a lead's score",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "parse score %s", args[1])
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		updated, err := env.Manager.OverrideScore(ctx, args[0], score, overrideReason, overrideActor)
		if err != nil {
			return err
		}

		return printJSON(updated)
	},
}

var overrideHistoryCmd = &cobra.Command{
	Use:   "history <lead-id>",
	Short: "Show the override audit trail for a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		history, err := env.Manager.OverrideHistory(ctx, args[0])
		if err != nil {
			return err
		}

		return printJSON(history)
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "why the score is being overridden")
	overrideCmd.Flags().StringVar(&overrideActor, "actor", "", "who is applying the override")
	overrideCmd.AddCommand(overrideHistoryCmd)
	rootCmd.AddCommand(overrideCmd)
}
