package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/fixture"
	"github.com/KaramelBytes/surveyate/internal/plan"
	"github.com/KaramelBytes/surveyate/internal/source"
	"github.com/KaramelBytes/surveyate/internal/utils"
	"github.com/spf13/cobra"
)

var (
	demoSeed    uint64
	demoRows    int
	demoMissing float64
)

var demoCmd = &cobra.Command{
	Use:   "demo <dir>",
	Short: "Write generated study data and a matching plan to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if demoRows < 10 {
			return fmt.Errorf("--rows must be at least 10")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		files := []struct {
			name string
			ds   *dataset.Dataset
		}{
			{"original.csv", fixture.Original(demoSeed, demoRows, demoMissing)},
			{"data_spain.csv", fixture.Segment(demoSeed+1, fixture.Spain, demoRows)},
			{"data_germany.csv", fixture.Segment(demoSeed+2, fixture.Germany, demoRows)},
		}
		for _, f := range files {
			if err := writeDataset(filepath.Join(dir, f.name), f.ds); err != nil {
				return err
			}
		}

		p := plan.Default()
		for i := range p.Origins {
			o := &p.Origins[i]
			switch o.Name {
			case "original":
				o.Sources = []plan.SourceFile{{Path: "original.csv", Format: "csv", Label: "original"}}
			case "synthetic":
				o.Sources[0].Path = "data_spain.csv"
				o.Sources[1].Path = "data_germany.csv"
			}
		}
		b, err := p.Marshal()
		if err != nil {
			return err
		}
		planPath := filepath.Join(dir, "plan.yaml")
		if err := utils.SafeWriteFile(planPath, b); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Demo data written to %s\n", dir)
		fmt.Fprintf(cmd.OutOrStdout(), "  Try: surveyate --plan %s run --out %s\n", planPath, filepath.Join(dir, "results"))
		return nil
	},
}

func writeDataset(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := source.WriteCSV(f, ds); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Uint64Var(&demoSeed, "seed", 1, "random seed")
	demoCmd.Flags().IntVar(&demoRows, "rows", 500, "rows per file")
	demoCmd.Flags().Float64Var(&demoMissing, "missing", 0.05, "share of missing values in the original data")
}
