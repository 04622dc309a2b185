package cmd

import (
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/analysis"
	"github.com/KaramelBytes/surveyate/internal/harmonize"
	"github.com/KaramelBytes/surveyate/internal/pipeline"
	"github.com/KaramelBytes/surveyate/internal/utils"
	"github.com/spf13/cobra"
)

var (
	profOutputPath string
	profGroupBy    []string
	profSampleRows int
	profTopValues  int
	profCorr       bool
	profOutliers   bool
	profOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Summarise the harmonized dataset: missingness, ranges and group means",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := baseInputs()
		if err != nil {
			return err
		}
		in.SkipBalance = true
		in.SkipEffects = true
		res, err := pipeline.Run(cmd.Context(), in)
		if err != nil {
			return err
		}

		opt := analysis.DefaultOptions()
		opt.GroupBy = profGroupBy
		opt.SampleRows = profSampleRows
		if profTopValues > 0 {
			opt.TopValues = profTopValues
		}
		opt.Correlations = profCorr
		opt.Outliers = profOutliers
		if profOutlierThr > 0 {
			opt.OutlierThreshold = profOutlierThr
		}
		rep, err := analysis.Profile(res.Data, opt)
		if err != nil {
			return err
		}
		md := rep.Markdown()
		if profOutputPath != "" {
			if err := utils.SafeWriteFile(profOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", profOutputPath)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), md)
		}
		printFailures(cmd, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile (Markdown)")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", []string{harmonize.OriginColumn}, "columns to group by (repeatable)")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 0, "number of leading rows to include")
	profileCmd.Flags().IntVar(&profTopValues, "top-values", 5, "category counts listed per text column")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", false, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
