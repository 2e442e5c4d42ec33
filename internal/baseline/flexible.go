package baseline

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultKnots is the number of interior knots drawn by Flexible when the
// caller does not override it.
const DefaultKnots = 8

// FlexibleOptions controls the random-knot hazard construction.
type FlexibleOptions struct {
	// Knots is the number of interior knot points. Zero selects DefaultKnots.
	Knots int

	// Spline fits a smooth interpolating curve through the knots instead of
	// a step function with jumps at the knots.
	Spline bool
}

// Flexible draws a baseline table by sampling random (time, hazard) knots,
// interpolating a curve through them, and normalizing the result into a
// failure distribution.
//
// Knot times are distinct interior grid points plus both endpoints; knot
// heights are Uniform(0,1). With Spline the curve is an Akima spline
// (falling back to piecewise-linear when too few points are available),
// otherwise a left-continuous step function. Negative spline excursions are
// clamped to zero before normalization. Repeated calls with fresh sources
// cover unimodal, multimodal and monotonic shapes without a parametric
// commitment, which is the point: the method trades exactness for shape
// diversity.
func Flexible(T int, opts FlexibleOptions, src rand.Source) (*Table, error) {
	if T < 1 {
		return nil, ErrHorizon
	}
	knots := opts.Knots
	if knots == 0 {
		knots = DefaultKnots
	}
	if knots < 0 {
		return nil, fmt.Errorf("baseline: knots must be non-negative, got %d", knots)
	}
	if T == 1 {
		// Degenerate grid: all mass at t=1.
		return fromCDF([]float64{1}), nil
	}

	rng := rand.New(src)
	uni := distuv.Uniform{Min: 0, Max: 1, Src: src}

	// Distinct interior knot times between the fixed endpoints 1 and T.
	if interior := T - 2; knots > interior {
		knots = interior
	}
	perm := rng.Perm(T - 2)
	xs := make([]float64, 0, knots+2)
	xs = append(xs, 1)
	picked := perm[:knots]
	for _, p := range picked {
		xs = append(xs, float64(p+2))
	}
	xs = append(xs, float64(T))
	slices.Sort(xs)

	ys := make([]float64, len(xs))
	for i := range ys {
		ys[i] = uni.Rand()
	}

	curve, err := fitCurve(xs, ys, opts.Spline)
	if err != nil {
		return nil, fmt.Errorf("baseline: fitting hazard curve: %w", err)
	}

	raw := make([]float64, T)
	for i := range raw {
		v := curve.Predict(float64(i + 1))
		if v < 0 {
			v = 0
		}
		raw[i] = v
	}
	return fromPDF(raw)
}

// fitCurve selects the interpolator for the knot set. Akima needs at least
// five points; smaller knot sets degrade to piecewise-linear.
func fitCurve(xs, ys []float64, spline bool) (interp.Predictor, error) {
	if !spline {
		var pc interp.PiecewiseConstant
		if err := pc.Fit(xs, ys); err != nil {
			return nil, err
		}
		return &pc, nil
	}
	if len(xs) < 5 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil, err
		}
		return &pl, nil
	}
	var ak interp.AkimaSpline
	if err := ak.Fit(xs, ys); err != nil {
		return nil, err
	}
	return &ak, nil
}
