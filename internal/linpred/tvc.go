package linpred

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/survsim/coxsim/internal/baseline"
)

// runTVC implements the permutational interval algorithm. Each observation
// is exposed to a covariate path that changes every time step; the value in
// force at step t sets the instantaneous relative hazard
// min(1, Hazard(t)*exp(x(t)·beta)), and a Bernoulli draw decides the event.
// Censoring happens inside the algorithm: a Censor fraction of observations
// receives a censoring time uniform on 1..T, and follow-up ends at the
// earlier of event and censoring. One Interval row is emitted per time step
// an observation remains at risk, with Failed set only on the terminal
// interval of an observed event.
func runTVC(b *baseline.Table, in Input, src rand.Source) (*Output, error) {
	N, T, P := in.N, in.T, in.P
	rng := rand.New(src)
	uni := distuv.Uniform{Min: 0, Max: 1, Src: src}

	path := in.X
	if path == nil {
		path = DrawCovariates(N*T, in.Mu, in.SD, src)
	} else if r, _ := path.Dims(); r != N*T {
		return nil, fmt.Errorf("%w: tvc covariate matrix has %d rows, want N*T = %d", ErrDimension, r, N*T)
	}
	beta := in.Beta
	if beta == nil {
		beta = DrawBeta(P, src)
	}

	// Censoring times: the target fraction of observations, picked by the
	// smallest independent uniform draws, is censored uniformly on 1..T.
	censAt := make([]int, N)
	for i := range censAt {
		censAt[i] = T + 1
	}
	for _, i := range pickFraction(N, in.Censor, rng) {
		censAt[i] = rng.IntN(T) + 1
	}

	snap := mat.NewDense(N, P, nil)
	out := &Output{
		X:         snap,
		Beta:      beta,
		XB:        mat.NewDense(N, T, nil),
		ExpXB:     mat.NewDense(N, T, nil),
		Durations: make([]int, N),
		Failed:    make([]bool, N),
	}
	if !in.OmitIndSurvive {
		out.IndSurvive = mat.NewDense(N, T, nil)
	}

	for i := 0; i < N; i++ {
		for t := 1; t <= T; t++ {
			row := path.RawRowView(i*T + t - 1)
			v := rowPredictor(row, beta, in.Interactions)
			out.XB.Set(i, t-1, v)
			out.ExpXB.Set(i, t-1, math.Exp(v))
			if out.IndSurvive != nil {
				out.IndSurvive.Set(i, t-1, math.Pow(b.Survivor[t-1], out.ExpXB.At(i, t-1)))
			}
		}
		snap.SetRow(i, path.RawRowView(i*T))

		event := 0
		for t := 1; t <= T; t++ {
			p := b.Hazard[t-1] * out.ExpXB.At(i, t-1)
			if p > 1 {
				p = 1
			}
			if uni.Rand() < p {
				event = t
				break
			}
		}

		end, failed := T, false
		switch {
		case event > 0 && event <= censAt[i]:
			end, failed = event, true
		case censAt[i] <= T:
			end = censAt[i]
		default:
			out.AdminCensored++
		}
		out.Durations[i] = end
		out.Failed[i] = failed

		for t := 1; t <= end; t++ {
			x := append([]float64(nil), path.RawRowView(i*T+t-1)...)
			out.Intervals = append(out.Intervals, Interval{
				ID:     i + 1,
				Start:  t - 1,
				End:    t,
				X:      x,
				Failed: failed && t == end,
			})
		}
	}
	return out, nil
}

// pickFraction returns the indices of the round(frac*n) smallest of n
// independent uniform draws.
func pickFraction(n int, frac float64, rng *rand.Rand) []int {
	k := int(math.Round(frac * float64(n)))
	if k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	u := make([]float64, n)
	idx := make([]int, n)
	for i := range u {
		u[i] = rng.Float64()
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return u[idx[a]] < u[idx[b]] })
	return idx[:k]
}
