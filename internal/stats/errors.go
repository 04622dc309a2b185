package stats

import "fmt"

// InsufficientSampleError reports a test or model with too few usable
// observations to be estimable.
type InsufficientSampleError struct {
	What string
	N    int
	Need int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("insufficient sample for %s: %d usable observations, need %d", e.What, e.N, e.Need)
}

// UnderdeterminedModelError reports a regression whose design matrix is rank
// deficient: collinear regressors or no more observations than parameters.
type UnderdeterminedModelError struct {
	What   string
	N      int
	K      int
	Cond   float64
	Reason string
}

func (e *UnderdeterminedModelError) Error() string {
	if e.Cond > 0 {
		return fmt.Sprintf("underdetermined model %s (n=%d, k=%d, cond=%.3g): %s", e.What, e.N, e.K, e.Cond, e.Reason)
	}
	return fmt.Sprintf("underdetermined model %s (n=%d, k=%d): %s", e.What, e.N, e.K, e.Reason)
}
