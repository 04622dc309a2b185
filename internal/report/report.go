// Package report renders run results as Markdown.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/surveyate/internal/balance"
	"github.com/KaramelBytes/surveyate/internal/effect"
	"github.com/KaramelBytes/surveyate/internal/pipeline"
)

func num(x float64, prec int) string {
	if math.IsNaN(x) {
		return "n/a"
	}
	if math.IsInf(x, 0) {
		if x > 0 {
			return "inf"
		}
		return "-inf"
	}
	return fmt.Sprintf("%.*f", prec, x)
}

func pval(p float64) string {
	if !math.IsNaN(p) && p < 0.001 {
		return "<0.001"
	}
	return num(p, 3)
}

func cell(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// Balance renders one balance table with two-decimal figures.
func Balance(rep *balance.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("### %s (%s t-test)\n\n", rep.Origin, rep.Test))
	if len(rep.Rows) == 0 {
		b.WriteString("No covariate could be tested.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("| Covariate | Mean (arm %g) | Mean (arm %g) | Difference | t | df | p-value | n1 | n2 |\n", rep.Arms[0], rep.Arms[1]))
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range rep.Rows {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %d | %d |\n",
			cell(r.Covariate), num(r.MeanArm1, 2), num(r.MeanArm2, 2), num(r.Diff(), 2),
			num(r.T, 2), num(r.DF, 2), num(r.PValue, 2), r.N1, r.N2))
	}
	return b.String()
}

// Models renders the unadjusted and adjusted fit of every estimate with
// three-decimal coefficients.
func Models(ests []pipeline.Estimate) string {
	if len(ests) == 0 {
		return "No effect was estimated.\n"
	}
	var b strings.Builder
	level := ests[0].Pair.Unadjusted.Level
	b.WriteString(fmt.Sprintf("| Analysis | Model | Coef. | Std. err. | p-value | %s%% CI | n | R² |\n", num(level*100, 0)))
	b.WriteString("|---|---|---:|---:|---:|---|---:|---:|\n")
	for _, e := range ests {
		for _, m := range []effect.ModelResult{e.Pair.Unadjusted, e.Pair.Adjusted} {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | [%s, %s] | %d | %s |\n",
				cell(e.Unit.Label), m.Spec, num(m.Coef, 3), num(m.StdErr, 3), pval(m.PValue),
				num(m.CILow, 3), num(m.CIHigh, 3), m.N, num(m.R2, 3)))
		}
	}
	return b.String()
}

// Failures lists units that produced no result.
func Failures(fails []*pipeline.UnitError) string {
	var b strings.Builder
	for _, f := range fails {
		b.WriteString(fmt.Sprintf("- **%s** `%s`: %s\n", f.Stage, f.Unit, cell(f.Err.Error())))
	}
	return b.String()
}

// Run renders a complete run.
func Run(res *pipeline.Result) string {
	var b strings.Builder
	b.WriteString("# Survey experiment report\n\n")
	b.WriteString(fmt.Sprintf("- Run: `%s`\n", res.RunID))
	if !res.Started.IsZero() {
		b.WriteString(fmt.Sprintf("- Started: %s\n", res.Started.UTC().Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("- Origins: %s\n", strings.Join(res.Origins, ", ")))
	b.WriteString(fmt.Sprintf("- Confidence level: %s%%\n", num(res.Level*100, 0)))
	if res.Data != nil {
		b.WriteString(fmt.Sprintf("- Harmonized rows: %d\n", res.Data.Len()))
	}

	if len(res.Balance) > 0 {
		b.WriteString("\n## Balance\n")
		for _, rep := range res.Balance {
			b.WriteString("\n")
			b.WriteString(Balance(rep))
		}
	}
	if len(res.Estimates) > 0 {
		b.WriteString("\n## Treatment effects\n\n")
		b.WriteString(Models(res.Estimates))

		var figs []pipeline.Estimate
		for _, e := range res.Estimates {
			if e.Figure != "" {
				figs = append(figs, e)
			}
		}
		if len(figs) > 0 {
			b.WriteString("\n## Figures\n\n")
			for _, e := range figs {
				b.WriteString(fmt.Sprintf("- [%s](%s)\n", cell(e.Unit.Label), e.Figure))
			}
		}
	}
	if len(res.Failures) > 0 {
		b.WriteString(fmt.Sprintf("\n## Failures (%d)\n\n", len(res.Failures)))
		b.WriteString(Failures(res.Failures))
	}
	return b.String()
}
