package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func design(cols ...[]float64) *mat.Dense {
	n := len(cols[0])
	x := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		x.SetCol(j, c)
	}
	return x
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestTTestStatistics(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}

	w, err := TTest(a, b, Welch)
	require.NoError(t, err)
	assert.InDelta(t, -3/math.Sqrt(2.5), w.T, 1e-12)
	assert.InDelta(t, 6.25/1.0625, w.DF, 1e-12)
	assert.Greater(t, w.P, 0.0)
	assert.Less(t, w.P, 1.0)

	s, err := TTest(a, b, Student)
	require.NoError(t, err)
	assert.InDelta(t, w.T, s.T, 1e-12)
	assert.Equal(t, 8.0, s.DF)
	assert.InDelta(t, TwoSidedP(s.T, 8), s.P, 1e-15)
}

func TestTTestSwapNegatesAndKeepsP(t *testing.T) {
	a := []float64{3, 7, 1, 9, 4, 4}
	b := []float64{5, 6, 8, 2}
	for _, test := range []Test{Welch, Student} {
		ab, err := TTest(a, b, test)
		require.NoError(t, err)
		ba, err := TTest(b, a, test)
		require.NoError(t, err)
		assert.InDelta(t, -ab.Diff(), ba.Diff(), 1e-12)
		assert.InDelta(t, -ab.T, ba.T, 1e-12)
		assert.InDelta(t, ab.P, ba.P, 1e-12)
	}
}

func TestTTestEqualMeans(t *testing.T) {
	r, err := TTest([]float64{30, 40, 50}, []float64{50, 30, 40}, Welch)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.P, 1e-9)

	r, err = TTest([]float64{2, 2}, []float64{2, 2, 2}, Welch)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.P)

	r, err = TTest([]float64{2, 2}, []float64{3, 3}, Student)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.P)
	assert.True(t, math.IsInf(r.T, -1))
}

func TestTTestInsufficient(t *testing.T) {
	_, err := TTest([]float64{1}, []float64{1, 2, 3}, Welch)
	var ins *InsufficientSampleError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, 1, ins.N)
}

func TestParseTest(t *testing.T) {
	got, err := ParseTest(" Student ")
	require.NoError(t, err)
	assert.Equal(t, Student, got)
	got, err = ParseTest("")
	require.NoError(t, err)
	assert.Equal(t, Welch, got)
	_, err = ParseTest("mann-whitney")
	assert.Error(t, err)
}

func TestCriticalT(t *testing.T) {
	assert.InDelta(t, 2.306004, CriticalT(0.95, 8), 1e-5)
	assert.InDelta(t, 1.859548, CriticalT(0.90, 8), 1e-5)
}

func TestOLSSimpleRegression(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 5, 4, 5}
	f, err := OLS("simple", design(ones(5), x), y, []string{"const", "x"})
	require.NoError(t, err)

	assert.InDelta(t, 2.2, f.Coef[0], 1e-10)
	assert.InDelta(t, 0.6, f.Coef[1], 1e-10)
	assert.InDelta(t, 2.4, f.RSS, 1e-10)
	assert.InDelta(t, math.Sqrt(0.08), f.StdErr[1], 1e-10)
	assert.InDelta(t, 0.6, f.R2, 1e-10)
	assert.InDelta(t, 1-0.4*4.0/3.0, f.AdjR2, 1e-10)
	assert.Equal(t, 3, f.DF)
	assert.Equal(t, 1, f.Index("x"))

	lo, hi := f.CI(1, 0.90)
	q := CriticalT(0.90, 3)
	assert.InDelta(t, 0.6-q*math.Sqrt(0.08), lo, 1e-10)
	assert.InDelta(t, 0.6+q*math.Sqrt(0.08), hi, 1e-10)
}

func TestOLSIsScaleInvariant(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	big := []float64{1e6, 2e6, 3e6, 4e6, 5e6}
	y := []float64{2, 4, 5, 4, 5}
	a, err := OLS("a", design(ones(5), x), y, []string{"const", "x"})
	require.NoError(t, err)
	b, err := OLS("b", design(ones(5), big), y, []string{"const", "x"})
	require.NoError(t, err)
	assert.InDelta(t, a.Coef[1], b.Coef[1]*1e6, 1e-9)
	assert.InDelta(t, a.P[1], b.P[1], 1e-9)
}

func TestOLSUnderdetermined(t *testing.T) {
	var under *UnderdeterminedModelError

	// constant treatment is collinear with the intercept
	_, err := OLS("constant", design(ones(4), []float64{2, 2, 2, 2}), []float64{1, 2, 3, 4}, []string{"const", "treatment"})
	require.ErrorAs(t, err, &under)

	// exact linear dependence between regressors
	x := []float64{1, 2, 1, 2, 1, 2}
	_, err = OLS("dup", design(ones(6), x, []float64{2, 4, 2, 4, 2, 4}), []float64{1, 2, 3, 4, 5, 6}, []string{"const", "x", "x2"})
	require.ErrorAs(t, err, &under)

	// n <= k
	_, err = OLS("small", design(ones(2), []float64{1, 2}), []float64{1, 2}, []string{"const", "x"})
	require.ErrorAs(t, err, &under)
	assert.Equal(t, 2, under.N)

	_, err = OLS("zero", design(ones(3), []float64{0, 0, 0}), []float64{1, 2, 3}, []string{"const", "x"})
	require.ErrorAs(t, err, &under)
}

func TestOLSInsufficient(t *testing.T) {
	_, err := OLS("one row", design([]float64{1}), []float64{3}, []string{"const"})
	var ins *InsufficientSampleError
	require.ErrorAs(t, err, &ins)
}
