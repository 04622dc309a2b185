package cmd

import (
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/plan"
	"github.com/KaramelBytes/surveyate/internal/utils"
	"github.com/spf13/cobra"
)

var planForce bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show or create analysis plans",
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective analysis plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if c.PlanFile == "" {
			_, err := cmd.OutOrStdout().Write(plan.DefaultYAML())
			return err
		}
		p, err := plan.Load(c.PlanFile)
		if err != nil {
			return err
		}
		b, err := p.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var planInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the built-in study plan to a file for editing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if utils.Exists(path) && !planForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := utils.SafeWriteFile(path, plan.DefaultYAML()); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Plan written: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planInitCmd)
	planInitCmd.Flags().BoolVar(&planForce, "force", false, "overwrite an existing file")
}
