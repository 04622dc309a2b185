package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/surveyate/internal/pipeline"
	"github.com/KaramelBytes/surveyate/internal/plan"
	"github.com/KaramelBytes/surveyate/internal/report"
	"github.com/KaramelBytes/surveyate/internal/stats"
	"github.com/spf13/cobra"
)

// loadPlan returns the configured plan file, or the built-in plan with
// source paths relative to the working directory.
func loadPlan() (*plan.Plan, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if c.PlanFile != "" {
		return plan.Load(c.PlanFile)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return plan.Default().WithDir(wd), nil
}

// baseInputs fills the pipeline inputs shared by every command.
func baseInputs() (pipeline.Inputs, error) {
	c, err := requireConfig()
	if err != nil {
		return pipeline.Inputs{}, err
	}
	p, err := loadPlan()
	if err != nil {
		return pipeline.Inputs{}, err
	}
	test, err := stats.ParseTest(c.BalanceTest)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	return pipeline.Inputs{
		Plan:    p,
		Level:   c.ConfidenceLevel,
		Test:    test,
		Workers: c.Workers,
		Log:     logger,
	}, nil
}

func printFailures(cmd *cobra.Command, res *pipeline.Result) {
	if len(res.Failures) == 0 {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %d unit(s) failed:\n", len(res.Failures))
	fmt.Fprint(cmd.ErrOrStderr(), report.Failures(res.Failures))
}
