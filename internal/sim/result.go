package sim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/survsim/coxsim/internal/baseline"
	"github.com/survsim/coxsim/internal/margeffect"
)

// Row is one line of the assembled data frame: one observation, or one
// exposure interval under tvc. Y always equals End; Start is 0 outside
// tvc mode.
type Row struct {
	ID         int
	Start, End int
	Y          int
	Failed     bool
	X          []float64
}

// Warning is a non-fatal plausibility finding attached to a replication.
type Warning struct {
	Code    string
	Message string
}

// Result is the bundle assembled for one replication.
type Result struct {
	// Data is the simulated data frame; XData the covariates-only view.
	Data  []Row
	XData *mat.Dense

	// Baseline is the hazard table the replication sampled against. When
	// the design fixes the hazard, all replications share one table.
	Baseline *baseline.Table

	// XB and ExpXB are the realized linear predictor and its exponential
	// (N×1, or N×T when the predictor varies over time).
	XB    *mat.Dense
	ExpXB *mat.Dense

	// Beta is the realized static coefficient vector; BetaMatrix the T×P
	// matrix under tvbeta.
	Beta       []float64
	BetaMatrix *mat.Dense

	// IndSurvive is the N×T individual-survivor matrix, nil when omitted.
	IndSurvive *mat.Dense

	// MargEffect is the marginal-effect summary with both counterfactual
	// datasets.
	MargEffect *margeffect.Effect

	Warnings []Warning
}

// Output is the tagged simulation result: one bundle, or a collection.
type Output struct {
	bundles []*Result
}

// Single returns the lone bundle when the design ran one replication.
func (o *Output) Single() (*Result, bool) {
	if len(o.bundles) == 1 {
		return o.bundles[0], true
	}
	return nil, false
}

// Bundles returns every replication bundle in order.
func (o *Output) Bundles() []*Result { return o.bundles }

// Len returns the number of replications.
func (o *Output) Len() int { return len(o.bundles) }
