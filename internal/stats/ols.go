package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxCond bounds the condition number of the equilibrated normal equations.
// Anything above it is treated as collinear.
const MaxCond = 1e12

// Fit is an ordinary least squares fit with homoskedastic standard errors.
type Fit struct {
	Names  []string
	Coef   []float64
	StdErr []float64
	T      []float64
	P      []float64
	N      int
	K      int
	DF     int
	RSS    float64
	Sigma2 float64
	R2     float64
	AdjR2  float64
	Cond   float64
}

// Index returns the position of the named coefficient, or -1.
func (f *Fit) Index(name string) int {
	for i, n := range f.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// CI returns the two-sided confidence interval of coefficient j.
func (f *Fit) CI(j int, level float64) (lo, hi float64) {
	q := CriticalT(level, float64(f.DF))
	return f.Coef[j] - q*f.StdErr[j], f.Coef[j] + q*f.StdErr[j]
}

// OLS regresses y on the columns of x. x holds one row per observation and
// must already include an intercept column if one is wanted; names labels
// the columns of x. Columns are scaled to unit norm before the normal
// equations are factorized, so the collinearity check does not depend on the
// units of the regressors.
func OLS(what string, x *mat.Dense, y []float64, names []string) (*Fit, error) {
	n, k := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("ols %s: %d responses for %d rows", what, len(y), n)
	}
	if len(names) != k {
		return nil, fmt.Errorf("ols %s: %d names for %d columns", what, len(names), k)
	}
	if n < 2 {
		return nil, &InsufficientSampleError{What: what, N: n, Need: 2}
	}
	if n <= k {
		return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Reason: "no more observations than parameters"}
	}

	scale := make([]float64, k)
	xs := mat.DenseCopyOf(x)
	for j := 0; j < k; j++ {
		col := mat.Col(nil, j, x)
		scale[j] = floats.Norm(col, 2)
		if scale[j] == 0 {
			return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Reason: fmt.Sprintf("regressor %s is identically zero", names[j])}
		}
		floats.Scale(1/scale[j], col)
		xs.SetCol(j, col)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, xs.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Reason: "normal equations are not positive definite (collinear regressors)"}
	}
	cond := chol.Cond()
	if cond > MaxCond || math.IsNaN(cond) {
		return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Cond: cond, Reason: "collinear regressors"}
	}

	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var xty mat.VecDense
	xty.MulVec(xs.T(), yv)
	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, &xty); err != nil {
		return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Cond: cond, Reason: err.Error()}
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, &UnderdeterminedModelError{What: what, N: n, K: k, Cond: cond, Reason: err.Error()}
	}

	var fitted mat.VecDense
	fitted.MulVec(xs, &gamma)
	var rss float64
	for i := 0; i < n; i++ {
		e := y[i] - fitted.AtVec(i)
		rss += e * e
	}
	mean := floats.Sum(y) / float64(n)
	var tss float64
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}

	f := &Fit{
		Names:  append([]string(nil), names...),
		Coef:   make([]float64, k),
		StdErr: make([]float64, k),
		T:      make([]float64, k),
		P:      make([]float64, k),
		N:      n,
		K:      k,
		DF:     n - k,
		RSS:    rss,
		Cond:   cond,
	}
	f.Sigma2 = rss / float64(f.DF)
	for j := 0; j < k; j++ {
		f.Coef[j] = gamma.AtVec(j) / scale[j]
		f.StdErr[j] = math.Sqrt(f.Sigma2*inv.At(j, j)) / scale[j]
		switch {
		case f.StdErr[j] > 0:
			f.T[j] = f.Coef[j] / f.StdErr[j]
			f.P[j] = TwoSidedP(f.T[j], float64(f.DF))
		case f.Coef[j] == 0:
			f.T[j], f.P[j] = 0, 1
		default:
			f.T[j], f.P[j] = math.Copysign(math.Inf(1), f.Coef[j]), 0
		}
	}
	if tss > 0 {
		f.R2 = 1 - rss/tss
		f.AdjR2 = 1 - (1-f.R2)*float64(n-1)/float64(f.DF)
	} else {
		f.R2, f.AdjR2 = math.NaN(), math.NaN()
	}
	return f, nil
}
