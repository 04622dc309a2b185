// Package effect estimates average treatment effects with and without
// covariate adjustment.
package effect

import (
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/harmonize"
	"github.com/KaramelBytes/surveyate/internal/stats"
	"gonum.org/v1/gonum/mat"
)

// Specification names one of the two fitted models.
type Specification string

const (
	Unadjusted Specification = "unadjusted"
	Adjusted   Specification = "adjusted"
)

// Intercept is the name of the constant term.
const Intercept = "const"

// DefaultCovariates is the study's adjustment set.
var DefaultCovariates = []string{"secondary_education", "tertiary_education", "employmentstatus", "female", "age"}

// DefaultLevel is the confidence level used for intervals and figures.
const DefaultLevel = 0.90

// Options configures Estimate. Zero values take the defaults above.
type Options struct {
	Treatment  string
	Covariates []string
	Level      float64
}

func (o Options) withDefaults() Options {
	if o.Treatment == "" {
		o.Treatment = harmonize.TreatmentColumn
	}
	if o.Covariates == nil {
		o.Covariates = DefaultCovariates
	}
	if o.Level == 0 {
		o.Level = DefaultLevel
	}
	return o
}

// Term is one row of a fitted coefficient table.
type Term struct {
	Name   string
	Coef   float64
	StdErr float64
	T      float64
	PValue float64
}

// ModelResult is one fitted specification, summarized on its treatment
// coefficient.
type ModelResult struct {
	Spec       Specification
	Outcome    string
	Regressors []string
	Coef       float64
	StdErr     float64
	T          float64
	PValue     float64
	CILow      float64
	CIHigh     float64
	Level      float64
	N          int
	DF         int
	R2         float64
	AdjR2      float64
	Cond       float64
	Terms      []Term
}

// Pair is the unadjusted and adjusted fit of one outcome on one population.
type Pair struct {
	Outcome    string
	Unadjusted ModelResult
	Adjusted   ModelResult
}

// Estimate fits outcome on treatment alone and on treatment plus the
// adjustment covariates. Each fit drops only the rows missing one of its own
// variables. An error from either fit fails the pair.
func Estimate(ds *dataset.Dataset, outcome string, opts Options) (Pair, error) {
	opts = opts.withDefaults()
	if opts.Level <= 0 || opts.Level >= 1 {
		return Pair{}, fmt.Errorf("confidence level %v outside (0,1)", opts.Level)
	}
	un, err := fit(ds, outcome, Unadjusted, []string{opts.Treatment}, opts)
	if err != nil {
		return Pair{}, err
	}
	regs := append([]string{opts.Treatment}, opts.Covariates...)
	adj, err := fit(ds, outcome, Adjusted, regs, opts)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Outcome: outcome, Unadjusted: un, Adjusted: adj}, nil
}

func fit(ds *dataset.Dataset, outcome string, spec Specification, regs []string, opts Options) (ModelResult, error) {
	vars := append([]string{outcome}, regs...)
	rows, err := ds.Complete(vars...)
	if err != nil {
		return ModelResult{}, fmt.Errorf("%s model of %s: %w", spec, outcome, err)
	}
	what := fmt.Sprintf("%s model of %s", spec, outcome)
	n, k := len(rows), len(regs)+1
	if n < 2 {
		return ModelResult{}, &stats.InsufficientSampleError{What: what, N: n, Need: 2}
	}
	x := mat.NewDense(n, k, nil)
	y := make([]float64, n)
	cols := make([]*dataset.Column, len(vars))
	for j, v := range vars {
		cols[j], _ = ds.Column(v)
	}
	for i, r := range rows {
		y[i], _ = cols[0].Float(r)
		x.Set(i, 0, 1)
		for j := 1; j < len(cols); j++ {
			v, _ := cols[j].Float(r)
			x.Set(i, j, v)
		}
	}
	names := append([]string{Intercept}, regs...)
	f, err := stats.OLS(what, x, y, names)
	if err != nil {
		return ModelResult{}, err
	}

	j := f.Index(opts.Treatment)
	lo, hi := f.CI(j, opts.Level)
	res := ModelResult{
		Spec:       spec,
		Outcome:    outcome,
		Regressors: append([]string(nil), regs...),
		Coef:       f.Coef[j],
		StdErr:     f.StdErr[j],
		T:          f.T[j],
		PValue:     f.P[j],
		CILow:      lo,
		CIHigh:     hi,
		Level:      opts.Level,
		N:          f.N,
		DF:         f.DF,
		R2:         f.R2,
		AdjR2:      f.AdjR2,
		Cond:       f.Cond,
		Terms:      make([]Term, len(f.Names)),
	}
	for i, name := range f.Names {
		res.Terms[i] = Term{Name: name, Coef: f.Coef[i], StdErr: f.StdErr[i], T: f.T[i], PValue: f.P[i]}
	}
	return res, nil
}
