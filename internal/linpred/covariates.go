package linpred

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Default covariate generation parameters.
const (
	DefaultXVars = 3
	DefaultMu    = 0.0
	DefaultSD    = 0.5
)

// Broadcast expands a per-covariate parameter to length p. A nil or empty
// slice yields p copies of def, a single value is broadcast, and a
// length-p slice passes through. Any other length is a dimension error.
func Broadcast(vals []float64, p int, def float64) ([]float64, error) {
	switch len(vals) {
	case 0:
		vals = []float64{def}
		fallthrough
	case 1:
		out := make([]float64, p)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	case p:
		return vals, nil
	default:
		return nil, fmt.Errorf("%w: parameter has length %d, want 1 or %d", ErrDimension, len(vals), p)
	}
}

// DrawCovariates samples an n×len(mu) matrix with column j drawn i.i.d.
// from Normal(mu[j], sd[j]).
func DrawCovariates(n int, mu, sd []float64, src rand.Source) *mat.Dense {
	p := len(mu)
	X := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		norm := distuv.Normal{Mu: mu[j], Sigma: sd[j], Src: src}
		for i := 0; i < n; i++ {
			X.Set(i, j, norm.Rand())
		}
	}
	return X
}
