package cmd

import (
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/pipeline"
	"github.com/KaramelBytes/surveyate/internal/report"
	"github.com/spf13/cobra"
)

var balOrigins []string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print covariate balance tables per origin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := baseInputs()
		if err != nil {
			return err
		}
		in.Origins = balOrigins
		in.SkipEffects = true
		res, err := pipeline.Run(cmd.Context(), in)
		if err != nil {
			return err
		}
		for i, rep := range res.Balance {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Balance(rep))
		}
		printFailures(cmd, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringSliceVar(&balOrigins, "origin", nil, "origins to check (repeatable; default all)")
}
