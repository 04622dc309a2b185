// Package stats holds the numerical kernels behind balance checks and effect
// estimates.
package stats

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Test selects the variance assumption of a two-sample t-test.
type Test string

const (
	// Welch does not assume equal variances.
	Welch Test = "welch"
	// Student pools the two variances.
	Student Test = "student"
)

// ParseTest accepts "welch" or "student", case-insensitively.
func ParseTest(s string) (Test, error) {
	switch Test(strings.ToLower(strings.TrimSpace(s))) {
	case Welch, "":
		return Welch, nil
	case Student:
		return Student, nil
	}
	return "", fmt.Errorf("unknown t-test %q (want welch or student)", s)
}

// TTestResult is a two-sided two-sample t-test of mean(a) - mean(b).
type TTestResult struct {
	Test   Test
	MeanA  float64
	MeanB  float64
	NA, NB int
	T      float64
	DF     float64
	P      float64
}

// Diff returns MeanA - MeanB.
func (r TTestResult) Diff() float64 { return r.MeanA - r.MeanB }

// TTest compares the means of a and b. Both samples need at least two values.
// When both samples have zero variance the p-value is 1 for equal means and
// 0 otherwise.
func TTest(a, b []float64, test Test) (TTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		return TTestResult{}, &InsufficientSampleError{What: "two-sample t-test", N: n, Need: 2}
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))
	r := TTestResult{Test: test, MeanA: ma, MeanB: mb, NA: len(a), NB: len(b)}

	var se2 float64
	switch test {
	case Student:
		pooled := ((na-1)*va + (nb-1)*vb) / (na + nb - 2)
		se2 = pooled * (1/na + 1/nb)
		r.DF = na + nb - 2
	case Welch:
		sa, sb := va/na, vb/nb
		se2 = sa + sb
		if se2 > 0 {
			r.DF = se2 * se2 / (sa*sa/(na-1) + sb*sb/(nb-1))
		} else {
			r.DF = na + nb - 2
		}
	default:
		return TTestResult{}, fmt.Errorf("unknown t-test %q", test)
	}

	diff := ma - mb
	if se2 == 0 {
		if diff == 0 {
			r.T, r.P = 0, 1
		} else {
			r.T, r.P = math.Copysign(math.Inf(1), diff), 0
		}
		return r, nil
	}
	r.T = diff / math.Sqrt(se2)
	r.P = TwoSidedP(r.T, r.DF)
	return r, nil
}

// TwoSidedP is P(|T| >= |t|) for Student's t with df degrees of freedom.
func TwoSidedP(t, df float64) float64 {
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return p
}

// CriticalT is the two-sided critical value for a confidence level in (0, 1).
func CriticalT(level, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(1 - (1-level)/2)
}
