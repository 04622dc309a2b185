// Package balance checks that random assignment produced comparable arms.
package balance

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/harmonize"
	"github.com/KaramelBytes/surveyate/internal/stats"
	"go.uber.org/zap"
)

// DefaultCovariates is the study's balance table, in display order.
var DefaultCovariates = []string{"female", "age", "education", "employmentstatus", "satdemo", "european_citizen"}

// Row is one covariate compared across the two arms.
type Row struct {
	Covariate string
	MeanArm1  float64
	MeanArm2  float64
	N1, N2    int
	T         float64
	DF        float64
	PValue    float64
}

// Diff returns MeanArm2 - MeanArm1.
func (r Row) Diff() float64 { return r.MeanArm2 - r.MeanArm1 }

// Failure is a covariate that could not be tested.
type Failure struct {
	Covariate string
	Err       error
}

// Report is the balance table for one dataset. Rows and Failures keep the
// requested covariate order.
type Report struct {
	Origin   string
	Test     stats.Test
	Arms     [2]float64
	Rows     []Row
	Failures []Failure
}

// Options configures Validate.
type Options struct {
	Origin    string
	Treatment string
	// Arms are the two treatment codes compared, arm 1 first.
	Arms [2]float64
	Test stats.Test
	Log  *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Treatment == "" {
		o.Treatment = harmonize.TreatmentColumn
	}
	if o.Arms == [2]float64{} {
		o.Arms = harmonize.Arms
	}
	if o.Test == "" {
		o.Test = stats.Welch
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// Validate compares each covariate's mean across the arms with pairwise
// deletion: a subject missing one covariate still counts for the others. A
// covariate with fewer than two values in an arm is recorded as a failure
// and the remaining covariates are still tested.
func Validate(ds *dataset.Dataset, covariates []string, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	treat, err := ds.Column(opts.Treatment)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", opts.Origin, err)
	}
	if treat.Kind() != dataset.Numeric {
		return nil, fmt.Errorf("balance %s: treatment %q: %w", opts.Origin, opts.Treatment, dataset.ErrKindMismatch)
	}
	rep := &Report{Origin: opts.Origin, Test: opts.Test, Arms: opts.Arms}
	for _, name := range covariates {
		row, err := compare(ds, treat, name, opts)
		if err != nil {
			var ins *stats.InsufficientSampleError
			if !errors.As(err, &ins) && !errors.Is(err, dataset.ErrUnknownColumn) && !errors.Is(err, dataset.ErrKindMismatch) {
				return nil, err
			}
			opts.Log.Warn("covariate not testable", zap.String("origin", opts.Origin), zap.String("covariate", name), zap.Error(err))
			rep.Failures = append(rep.Failures, Failure{Covariate: name, Err: err})
			continue
		}
		rep.Rows = append(rep.Rows, row)
	}
	opts.Log.Debug("balance checked", zap.String("origin", opts.Origin), zap.Int("rows", len(rep.Rows)), zap.Int("failures", len(rep.Failures)))
	return rep, nil
}

func compare(ds *dataset.Dataset, treat *dataset.Column, name string, opts Options) (Row, error) {
	c, err := ds.Column(name)
	if err != nil {
		return Row{}, err
	}
	if c.Kind() != dataset.Numeric {
		return Row{}, fmt.Errorf("covariate %q is %s: %w", name, c.Kind(), dataset.ErrKindMismatch)
	}
	var a1, a2 []float64
	for i := 0; i < ds.Len(); i++ {
		arm, ok := treat.Float(i)
		if !ok {
			continue
		}
		v, ok := c.Float(i)
		if !ok {
			continue
		}
		switch arm {
		case opts.Arms[0]:
			a1 = append(a1, v)
		case opts.Arms[1]:
			a2 = append(a2, v)
		}
	}
	// arm 2 first so T and the mean difference share a sign
	r, err := stats.TTest(a2, a1, opts.Test)
	if err != nil {
		var ins *stats.InsufficientSampleError
		if errors.As(err, &ins) {
			ins.What = fmt.Sprintf("balance test on %s (arm sizes %d and %d)", name, len(a1), len(a2))
		}
		return Row{}, err
	}
	return Row{
		Covariate: name,
		MeanArm1:  r.MeanB,
		MeanArm2:  r.MeanA,
		N1:        r.NB,
		N2:        r.NA,
		T:         r.T,
		DF:        r.DF,
		PValue:    r.P,
	}, nil
}
