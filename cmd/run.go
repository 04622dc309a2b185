package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/surveyate/internal/pipeline"
	"github.com/KaramelBytes/surveyate/internal/report"
	"github.com/KaramelBytes/surveyate/internal/resultstore"
	"github.com/KaramelBytes/surveyate/internal/utils"
	"github.com/KaramelBytes/surveyate/internal/visual"
	"github.com/spf13/cobra"
)

var (
	runOutDir    string
	runDB        string
	runFormat    string
	runNoFigures bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full plan: balance tables, effect estimates and figures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := baseInputs()
		if err != nil {
			return err
		}
		outDir := cfg.OutputDir
		if runOutDir != "" {
			outDir = runOutDir
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if !runNoFigures {
			format := cfg.FigureFormat
			if runFormat != "" {
				format = runFormat
			}
			r, err := visual.NewPlot(format, cfg.FigureWidthIn, cfg.FigureHeightIn)
			if err != nil {
				return err
			}
			in.Renderer = r
			in.FigureDir = filepath.Join(outDir, "plots")
		}
		dbPath := cfg.ResultsDB
		if runDB != "" {
			dbPath = runDB
		}
		if dbPath != "" {
			store, err := resultstore.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			in.Store = store
		}

		res, err := pipeline.Run(cmd.Context(), in)
		if err != nil {
			return err
		}
		for i, e := range res.Estimates {
			if e.Figure == "" {
				continue
			}
			if rel, err := filepath.Rel(outDir, e.Figure); err == nil {
				res.Estimates[i].Figure = filepath.ToSlash(rel)
			}
		}
		reportPath := filepath.Join(outDir, "report.md")
		if err := utils.SafeWriteFile(reportPath, []byte(report.Run(res))); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Run %s: %d estimate(s) across %d origin(s)\n", res.RunID, len(res.Estimates), len(res.Origins))
		fmt.Fprintf(out, "✓ Wrote report to %s\n", reportPath)
		if in.FigureDir != "" {
			fmt.Fprintf(out, "✓ Figures in %s\n", in.FigureDir)
		}
		if in.Store != nil {
			fmt.Fprintf(out, "✓ Saved run to %s\n", dbPath)
		}
		printFailures(cmd, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "output directory (overrides config)")
	runCmd.Flags().StringVar(&runDB, "db", "", "SQLite file to record the run in (overrides config)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "figure format: png|svg (overrides config)")
	runCmd.Flags().BoolVar(&runNoFigures, "no-figures", false, "skip figure rendering")
}
