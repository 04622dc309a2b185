package cmd

import (
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/pipeline"
	"github.com/KaramelBytes/surveyate/internal/report"
	"github.com/spf13/cobra"
)

var (
	estOutcome   string
	estSubgroups []string
	estOrigins   []string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the treatment effect on one outcome",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := baseInputs()
		if err != nil {
			return err
		}
		found := false
		for _, a := range in.Plan.Analyses {
			if a.Outcome == estOutcome {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("outcome %q is not analysed by the plan", estOutcome)
		}
		in.Outcomes = []string{estOutcome}
		in.Subgroups = estSubgroups
		in.Origins = estOrigins
		in.SkipBalance = true
		res, err := pipeline.Run(cmd.Context(), in)
		if err != nil {
			return err
		}
		if len(res.Estimates) > 0 {
			fmt.Fprint(cmd.OutOrStdout(), report.Models(res.Estimates))
		}
		printFailures(cmd, res)
		if len(res.Estimates) == 0 {
			return fmt.Errorf("no estimate for %s", estOutcome)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().StringVar(&estOutcome, "outcome", "", "outcome variable (required)")
	estimateCmd.Flags().StringSliceVar(&estSubgroups, "subgroup", nil, "subgroups to estimate (repeatable; default those in the plan)")
	estimateCmd.Flags().StringSliceVar(&estOrigins, "origin", nil, "origins to estimate (repeatable; default all)")
	_ = estimateCmd.MarkFlagRequired("outcome")
}
