// Package linpred turns covariates and coefficients into simulated
// durations under the proportional-hazards assumption.
//
// The engine consumes a baseline table from the baseline package, builds a
// linear predictor XB for every observation (optionally per time point),
// and samples event times by inverse-transform search against the
// individually rescaled survivor curve Survivor(t)^exp(XB). Three
// generative modes are supported: static covariates and coefficients,
// time-varying coefficients (tvbeta), and time-varying covariates (tvc,
// a sequential-interval permutational algorithm).
package linpred

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/survsim/coxsim/internal/baseline"
)

var (
	// ErrMode indicates an unrecognized generative mode.
	ErrMode = errors.New("linpred: unknown generative mode")

	// ErrDimension indicates covariate, coefficient or interaction shapes
	// that do not agree with each other.
	ErrDimension = errors.New("linpred: dimension mismatch")
)

// Mode selects the generative process.
type Mode string

const (
	// ModeStatic holds covariates and coefficients fixed over time.
	ModeStatic Mode = "static"

	// ModeTVC redraws covariate values every time step and records one row
	// per exposure interval.
	ModeTVC Mode = "tvc"

	// ModeTVBeta lets coefficients vary as a function of time.
	ModeTVBeta Mode = "tvbeta"
)

// ParseMode maps a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStatic, ModeTVC, ModeTVBeta:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrMode, s)
	}
}

// Input bundles everything the engine needs for one replication. Nil X,
// Beta and BetaMatrix fields are drawn from their generation parameters.
// Mu and SD must already be broadcast to length P.
type Input struct {
	Mode Mode
	N, T int
	P    int

	X          *mat.Dense // N×P, or N·T×P under ModeTVC
	Mu, SD     []float64
	Beta       []float64
	BetaMatrix *mat.Dense // T×P, ModeTVBeta only

	// Interactions is an optional P×P pairwise-weight matrix read on the
	// strict upper triangle.
	Interactions *mat.Dense

	// OmitIndSurvive skips materializing the N×T survivor matrix.
	OmitIndSurvive bool

	// Censor is the censoring proportion applied inside the tvc algorithm.
	// Ignored by the other modes, which censor downstream.
	Censor float64
}

// Output carries the sampled durations and every diagnostic quantity
// downstream consumers rely on.
type Output struct {
	X          *mat.Dense // N×P; first-interval snapshot under ModeTVC
	Beta       []float64
	BetaMatrix *mat.Dense // realized T×P matrix, ModeTVBeta only
	XB         *mat.Dense // N×1, or N×T when the predictor varies in time
	ExpXB      *mat.Dense
	Durations  []int
	Failed     []bool
	IndSurvive *mat.Dense // N×T, nil when omitted

	// AdminCensored counts observations clipped to T because their sampled
	// time fell beyond the grid.
	AdminCensored int

	// Intervals holds the per-exposure-interval rows, ModeTVC only.
	Intervals []Interval
}

// Interval is one exposure interval (Start, End] of a tvc observation.
// Failed is true only on the final interval of an observed event.
type Interval struct {
	ID         int
	Start, End int
	X          []float64
	Failed     bool
}

// Run executes the configured generative mode against the baseline table.
func Run(b *baseline.Table, in Input, src rand.Source) (*Output, error) {
	switch in.Mode {
	case ModeStatic:
		return runStatic(b, in, src)
	case ModeTVBeta:
		return runTVBeta(b, in, src)
	case ModeTVC:
		return runTVC(b, in, src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrMode, in.Mode)
	}
}

func runStatic(b *baseline.Table, in Input, src rand.Source) (*Output, error) {
	X := in.X
	if X == nil {
		X = DrawCovariates(in.N, in.Mu, in.SD, src)
	}
	beta := in.Beta
	if beta == nil {
		beta = DrawBeta(in.P, src)
	}

	xb := make([]float64, in.N)
	for i := 0; i < in.N; i++ {
		xb[i] = rowPredictor(X.RawRowView(i), beta, in.Interactions)
	}

	out := &Output{
		X:         X,
		Beta:      beta,
		XB:        mat.NewDense(in.N, 1, append([]float64(nil), xb...)),
		ExpXB:     mat.NewDense(in.N, 1, nil),
		Durations: make([]int, in.N),
		Failed:    make([]bool, in.N),
	}
	if !in.OmitIndSurvive {
		out.IndSurvive = mat.NewDense(in.N, in.T, nil)
	}

	uni := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for i := 0; i < in.N; i++ {
		e := math.Exp(xb[i])
		out.ExpXB.Set(i, 0, e)
		y, failed := sampleDuration(b, i, out.IndSurvive, uni.Rand(), func(t int) float64 { return e })
		out.Durations[i] = y
		out.Failed[i] = failed
		if !failed {
			out.AdminCensored++
		}
	}
	return out, nil
}

func runTVBeta(b *baseline.Table, in Input, src rand.Source) (*Output, error) {
	X := in.X
	if X == nil {
		X = DrawCovariates(in.N, in.Mu, in.SD, src)
	}
	B := in.BetaMatrix
	base := in.Beta
	if B == nil {
		if base == nil {
			base = DrawBeta(in.P, src)
		}
		B = ExpandTV(base, in.T)
	}

	out := &Output{
		X:          X,
		Beta:       base,
		BetaMatrix: B,
		XB:         mat.NewDense(in.N, in.T, nil),
		ExpXB:      mat.NewDense(in.N, in.T, nil),
		Durations:  make([]int, in.N),
		Failed:     make([]bool, in.N),
	}
	if !in.OmitIndSurvive {
		out.IndSurvive = mat.NewDense(in.N, in.T, nil)
	}

	uni := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for i := 0; i < in.N; i++ {
		row := X.RawRowView(i)
		for t := 1; t <= in.T; t++ {
			v := rowPredictor(row, B.RawRowView(t-1), in.Interactions)
			out.XB.Set(i, t-1, v)
			out.ExpXB.Set(i, t-1, math.Exp(v))
		}
		y, failed := sampleDuration(b, i, out.IndSurvive, uni.Rand(), func(t int) float64 {
			return out.ExpXB.At(i, t-1)
		})
		out.Durations[i] = y
		out.Failed[i] = failed
		if !failed {
			out.AdminCensored++
		}
	}
	return out, nil
}

// sampleDuration scans the discretized individual CDF 1-Survivor(t)^exp
// for the first crossing of the uniform draw u. No closed-form inverse
// exists for the flexible baseline, which is why the full table is
// materialized. Observations whose draw never crosses are clipped to T
// and reported as administratively censored (failed = false).
func sampleDuration(b *baseline.Table, i int, surv *mat.Dense, u float64, exp func(t int) float64) (y int, failed bool) {
	T := b.T()
	y = T
	for t := 1; t <= T; t++ {
		s := math.Pow(b.Survivor[t-1], exp(t))
		if surv != nil {
			surv.Set(i, t-1, s)
		}
		if !failed && 1-s >= u {
			y = t
			failed = true
			if surv == nil {
				return y, failed
			}
		}
	}
	return y, failed
}

// rowPredictor computes x·beta plus any pairwise interaction terms.
func rowPredictor(x, beta []float64, w *mat.Dense) float64 {
	v := 0.0
	for j := range x {
		v += x[j] * beta[j]
	}
	if w != nil {
		v += interactionTerm(x, w)
	}
	return v
}

// interactionTerm sums W[j][k]*x_j*x_k over the strict upper triangle.
func interactionTerm(x []float64, w *mat.Dense) float64 {
	v := 0.0
	for j := 0; j < len(x); j++ {
		for k := j + 1; k < len(x); k++ {
			if wt := w.At(j, k); wt != 0 {
				v += wt * x[j] * x[k]
			}
		}
	}
	return v
}
