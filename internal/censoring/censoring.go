// Package censoring marks simulated observations as right-censored.
//
// Both policies censor exactly round(censor*N) observations: Uniform picks
// them by independent uniform draws, Conditional by ranking a secondary
// covariate-driven score, which models censoring that correlates with the
// covariates rather than being purely random.
package censoring

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/survsim/coxsim/internal/linpred"
)

// ErrProportion indicates a censoring proportion outside [0, 1).
var ErrProportion = errors.New("censoring: proportion must be in [0, 1)")

// Count returns the number of observations censored for a proportion.
func Count(n int, censor float64) int {
	return int(math.Round(censor * float64(n)))
}

// Uniform returns a mask censoring the Count(n, censor) observations with
// the smallest of n independent Uniform(0,1) draws. Marginally every
// observation is censored with probability censor, with the realized count
// pinned exactly.
func Uniform(n int, censor float64, src rand.Source) ([]bool, error) {
	if censor < 0 || censor >= 1 {
		return nil, ErrProportion
	}
	rng := rand.New(src)
	u := make([]float64, n)
	for i := range u {
		u[i] = rng.Float64()
	}
	return maskSmallest(u, Count(n, censor)), nil
}

// Conditional draws a fresh coefficient vector, independent of the
// data-generating one, scores every observation by the secondary linear
// predictor X·beta2, and censors the top Count(n, censor) scores (ties
// broken by index). The secondary scores are returned for inspection.
func Conditional(X *mat.Dense, censor float64, src rand.Source) ([]bool, []float64, error) {
	if censor < 0 || censor >= 1 {
		return nil, nil, ErrProportion
	}
	n, p := X.Dims()
	beta2 := linpred.DrawBeta(p, src)

	score := make([]float64, n)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for j := range row {
			score[i] += row[j] * beta2[j]
		}
	}

	neg := make([]float64, n)
	for i := range score {
		neg[i] = -score[i]
	}
	return maskSmallest(neg, Count(n, censor)), score, nil
}

// maskSmallest flags the k indices with the smallest keys.
func maskSmallest(keys []float64, k int) []bool {
	n := len(keys)
	mask := make([]bool, n)
	if k <= 0 {
		return mask
	}
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	for _, i := range idx[:k] {
		mask[i] = true
	}
	return mask
}
