// Package margeffect estimates the expected change in duration when one
// covariate moves from a low to a high value.
//
// Two counterfactual covariate matrices are built, identical to the
// original except that the chosen column is pinned to the low or high
// value; expected durations are recomputed under the already-realized
// model (baseline table and coefficients, no fresh randomness) and a
// pluggable reducer summarizes the per-observation differences.
//
// Sign convention: the effect is reduce(highDur - lowDur), so a positive
// effect means raising the covariate lengthens the expected duration.
// Under proportional hazards a positive coefficient therefore yields a
// negative marginal effect.
package margeffect

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/survsim/coxsim/internal/baseline"
)

// ErrCovariate indicates a covariate column outside the matrix.
var ErrCovariate = errors.New("margeffect: covariate index out of range")

// Reducer collapses per-observation duration differences to a point
// estimate. Median is the default; any summary statistic can be injected.
type Reducer func([]float64) float64

// Median returns the empirical median.
func Median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	slices.Sort(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}

// Mean returns the arithmetic mean.
func Mean(xs []float64) float64 {
	return stat.Mean(xs, nil)
}

// Spec configures the comparison.
type Spec struct {
	// Covariate is the zero-based column pinned in the counterfactuals.
	Covariate int

	// Low and High are the two values the column is fixed to.
	Low, High float64

	// Compare reduces the per-observation differences; nil means Median.
	Compare Reducer
}

// Counterfactual is one of the two modified datasets used in the
// comparison, kept for inspection.
type Counterfactual struct {
	X           *mat.Dense
	XB          *mat.Dense // N×1, or N×T with time-varying coefficients
	ExpectedDur []float64
}

// Effect is the marginal-effect summary.
type Effect struct {
	Effect    float64
	Low, High *Counterfactual
}

// Compute builds both counterfactuals and reduces their expected-duration
// differences. Exactly one of beta (static or tvc) and betaMatrix (T×P,
// time-varying coefficients) drives the predictor; interactions, when
// present, are re-applied to the pinned matrices.
func Compute(b *baseline.Table, X *mat.Dense, beta []float64, betaMatrix *mat.Dense, inter *mat.Dense, spec Spec) (*Effect, error) {
	_, p := X.Dims()
	if spec.Covariate < 0 || spec.Covariate >= p {
		return nil, fmt.Errorf("%w: column %d of %d", ErrCovariate, spec.Covariate, p)
	}
	reduce := spec.Compare
	if reduce == nil {
		reduce = Median
	}

	low := counterfactual(b, X, beta, betaMatrix, inter, spec.Covariate, spec.Low)
	high := counterfactual(b, X, beta, betaMatrix, inter, spec.Covariate, spec.High)

	diffs := make([]float64, len(low.ExpectedDur))
	for i := range diffs {
		diffs[i] = high.ExpectedDur[i] - low.ExpectedDur[i]
	}
	return &Effect{Effect: reduce(diffs), Low: low, High: high}, nil
}

func counterfactual(b *baseline.Table, X *mat.Dense, beta []float64, betaMatrix *mat.Dense, inter *mat.Dense, col int, val float64) *Counterfactual {
	n, p := X.Dims()
	T := b.T()

	cf := mat.DenseCopyOf(X)
	for i := 0; i < n; i++ {
		cf.Set(i, col, val)
	}

	c := &Counterfactual{X: cf, ExpectedDur: make([]float64, n)}
	if betaMatrix == nil {
		c.XB = mat.NewDense(n, 1, nil)
	} else {
		c.XB = mat.NewDense(n, T, nil)
	}

	for i := 0; i < n; i++ {
		row := cf.RawRowView(i)
		if betaMatrix == nil {
			xb := dot(row, beta) + interTerm(row, inter, p)
			c.XB.Set(i, 0, xb)
			e := math.Exp(xb)
			for t := 1; t <= T; t++ {
				c.ExpectedDur[i] += math.Pow(b.Survivor[t-1], e)
			}
			continue
		}
		for t := 1; t <= T; t++ {
			xb := dot(row, betaMatrix.RawRowView(t-1)) + interTerm(row, inter, p)
			c.XB.Set(i, t-1, xb)
			c.ExpectedDur[i] += math.Pow(b.Survivor[t-1], math.Exp(xb))
		}
	}
	return c
}

func dot(x, beta []float64) float64 {
	v := 0.0
	for j := range x {
		v += x[j] * beta[j]
	}
	return v
}

func interTerm(x []float64, w *mat.Dense, p int) float64 {
	if w == nil {
		return 0
	}
	v := 0.0
	for j := 0; j < p; j++ {
		for k := j + 1; k < p; k++ {
			if wt := w.At(j, k); wt != 0 {
				v += wt * x[j] * x[k]
			}
		}
	}
	return v
}
