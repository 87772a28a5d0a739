package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/store"
)

var (
	leadsStatus   string
	leadsBucket   string
	leadsMinScore float64
	leadsLimit    int
	leadsOffset   int
	leadsNotes    string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and manage scored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads ordered by score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(ctx, store.LeadFilter{
			Status:   model.LeadStatus(leadsStatus),
			Bucket:   model.ScoreBucket(leadsBucket),
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
			Offset:   leadsOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		return printJSON(leads)
	},
}

var leadsGetCmd = &cobra.Command{
	Use:   "get <lead-id>",
	Short: "Show a single lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		found, err := env.Store.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get lead %s", args[0])
		}

		return printJSON(found)
	},
}

var leadsStatusCmd = &cobra.Command{
	Use:   "status <lead-id> <status>",
	Short: "Transition a lead to a new lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Manager.TransitionStatus(ctx, args[0], model.LeadStatus(args[1]), leadsNotes); err != nil {
			return err
		}

		updated, err := env.Store.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get lead %s", args[0])
		}

		return printJSON(updated)
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by lifecycle status")
	leadsListCmd.Flags().StringVar(&leadsBucket, "bucket", "", "filter by score bucket")
	leadsListCmd.Flags().Float64Var(&leadsMinScore, "min-score", 0, "minimum final score")
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 100, "maximum leads to return")
	leadsListCmd.Flags().IntVar(&leadsOffset, "offset", 0, "pagination offset")
	leadsStatusCmd.Flags().StringVar(&leadsNotes, "notes", "", "append a note alongside the transition")
	leadsCmd.AddCommand(leadsListCmd, leadsGetCmd, leadsStatusCmd)
	rootCmd.AddCommand(leadsCmd)
}
