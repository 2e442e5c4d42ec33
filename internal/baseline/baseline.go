// Package baseline constructs discretized baseline hazard tables for
// proportional-hazards simulation.
//
// A Table holds four parallel views of the same baseline distribution over
// the time grid 1..T: the failure PDF, its CDF, the survivor function, and
// the discrete hazard. Tables are built either from a user-supplied hazard
// function (FromFunc) or by the flexible random-knot method (Flexible),
// which draws hazard shapes without committing to a parametric family.
package baseline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrHorizon indicates a non-positive time horizon T.
	ErrHorizon = errors.New("baseline: time horizon T must be positive")

	// ErrHazardValue indicates a hazard function returned a negative or
	// non-finite value somewhere on the grid.
	ErrHazardValue = errors.New("baseline: hazard function produced unusable output")

	// ErrZeroMass indicates the hazard curve carries no probability mass,
	// so no failure distribution can be derived from it.
	ErrZeroMass = errors.New("baseline: hazard curve has zero total mass")
)

// HazardFunc maps a grid time point t in 1..T to a hazard value.
// Values must be non-negative and finite.
type HazardFunc func(t int) float64

// Table is a baseline failure distribution discretized over 1..T.
// Index i corresponds to time point t = i+1.
//
// Invariants: CDF is non-decreasing with CDF[T-1] = 1, Survivor[i] equals
// 1 - CDF[i], PDF sums to 1, and Hazard[i] = PDF[i] / Survivor[i-1] with
// the survivor at time 0 taken as 1.
type Table struct {
	PDF      []float64
	CDF      []float64
	Survivor []float64
	Hazard   []float64
}

// T returns the time horizon of the table.
func (tb *Table) T() int { return len(tb.PDF) }

// SurvivorAt returns the survivor probability at time t, where t ranges
// over 0..T and SurvivorAt(0) = 1.
func (tb *Table) SurvivorAt(t int) float64 {
	if t <= 0 {
		return 1
	}
	return tb.Survivor[t-1]
}

// FromFunc evaluates h on 1..T and derives a consistent table from it.
// The cumulative sum of h is renormalized into the CDF, the PDF is its
// first difference, and the hazard column is rebuilt from PDF and
// survivor rather than taken from h directly.
func FromFunc(T int, h HazardFunc) (*Table, error) {
	if T < 1 {
		return nil, ErrHorizon
	}
	raw := make([]float64, T)
	for i := range raw {
		v := h(i + 1)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: h(%d) = %v", ErrHazardValue, i+1, v)
		}
		raw[i] = v
	}
	cum := make([]float64, T)
	floats.CumSum(cum, raw)
	total := cum[T-1]
	if total <= 0 {
		return nil, ErrZeroMass
	}
	floats.Scale(1/total, cum)
	return fromCDF(cum), nil
}

// fromPDF derives a table from a non-negative curve, treating it as
// unnormalized failure mass over the grid.
func fromPDF(raw []float64) (*Table, error) {
	total := floats.Sum(raw)
	if total <= 0 {
		return nil, ErrZeroMass
	}
	cdf := make([]float64, len(raw))
	floats.CumSum(cdf, raw)
	floats.Scale(1/total, cdf)
	return fromCDF(cdf), nil
}

// fromCDF fills in PDF, Survivor and Hazard from a normalized CDF.
func fromCDF(cdf []float64) *Table {
	T := len(cdf)
	tb := &Table{
		PDF:      make([]float64, T),
		CDF:      cdf,
		Survivor: make([]float64, T),
		Hazard:   make([]float64, T),
	}
	prev := 0.0
	for i := range cdf {
		tb.PDF[i] = cdf[i] - prev
		tb.Survivor[i] = 1 - cdf[i]
		prev = cdf[i]
	}
	// Survivor at time 0 is 1 by definition.
	prevSurv := 1.0
	for i := range cdf {
		if prevSurv > 0 {
			tb.Hazard[i] = tb.PDF[i] / prevSurv
		}
		prevSurv = tb.Survivor[i]
	}
	return tb
}
