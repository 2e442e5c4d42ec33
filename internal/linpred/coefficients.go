package linpred

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CoefSD is the standard deviation of coefficients drawn when the caller
// supplies none.
const CoefSD = 0.1

// DrawBeta samples a length-p coefficient vector i.i.d. Normal(0, CoefSD).
func DrawBeta(p int, src rand.Source) []float64 {
	norm := distuv.Normal{Mu: 0, Sigma: CoefSD, Src: src}
	beta := make([]float64, p)
	for i := range beta {
		beta[i] = norm.Rand()
	}
	return beta
}

// ExpandTV builds the T×P time-varying coefficient matrix from a plain
// vector: every row copies base, with the first coefficient scaled by
// log(t). Row 1 therefore zeroes the first coefficient (log 1 = 0).
func ExpandTV(base []float64, T int) *mat.Dense {
	p := len(base)
	B := mat.NewDense(T, p, nil)
	for t := 1; t <= T; t++ {
		row := B.RawRowView(t - 1)
		copy(row, base)
		row[0] = base[0] * math.Log(float64(t))
	}
	return B
}

// ValidateInteractions checks that w is a p×p pairwise-weight matrix.
// Weights are read on the strict upper triangle; entries below the
// diagonal must be zero or mirror their transpose so that a symmetric
// matrix and an upper-triangular one are both accepted, but nothing
// ambiguous is.
func ValidateInteractions(w *mat.Dense, p int) error {
	if w == nil {
		return nil
	}
	r, c := w.Dims()
	if r != p || c != p {
		return fmt.Errorf("%w: interaction matrix is %dx%d, want %dx%d", ErrDimension, r, c, p, p)
	}
	for j := 0; j < p; j++ {
		if w.At(j, j) != 0 {
			return fmt.Errorf("%w: interaction matrix has nonzero diagonal at (%d,%d)", ErrDimension, j, j)
		}
		for k := j + 1; k < p; k++ {
			lo := w.At(k, j)
			if lo != 0 && lo != w.At(j, k) {
				return fmt.Errorf("%w: interaction weight (%d,%d) conflicts with (%d,%d)", ErrDimension, k, j, j, k)
			}
		}
	}
	return nil
}
