package sim

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/survsim/coxsim/internal/baseline"
)

// Warning codes.
const (
	WarnAdminCensoring = "admin-censoring"
	WarnEndpointPileup = "endpoint-pileup"
)

// adminCensorLimit is the tolerated fraction of observations clipped to T.
const adminCensorLimit = 0.05

// binomTail is the two-sided tail probability for the endpoint checks.
const binomTail = 0.025

// plausibility runs the post-sampling checks. Findings are advisory; the
// replication's result is returned either way and the caller decides
// whether to discard it.
func plausibility(b *baseline.Table, durations []int, adminCensored, n int) []Warning {
	var ws []Warning

	if float64(adminCensored) > adminCensorLimit*float64(n) {
		ws = append(ws, Warning{
			Code: WarnAdminCensoring,
			Message: fmt.Sprintf("%d of %d observations were administratively censored at T: "+
				"the hazard carries mass at the final time point; consider increasing T", adminCensored, n),
		})
	}

	T := b.T()
	if T < 2 {
		return ws
	}
	atMin, atMax := 0, 0
	for _, y := range durations {
		switch y {
		case 1:
			atMin++
		case T:
			atMax++
		}
	}
	if w, ok := endpointCheck("t=1", atMin, n, b.CDF[0]); ok {
		ws = append(ws, w)
	}
	if w, ok := endpointCheck("t=T", atMax, n, b.Survivor[T-2]); ok {
		ws = append(ws, w)
	}
	return ws
}

// endpointCheck compares the observed count of durations at a grid
// endpoint against the central 95% of Binomial(n, p), the count expected
// under the baseline alone.
func endpointCheck(where string, k, n int, p float64) (Warning, bool) {
	if p <= 0 || p >= 1 {
		return Warning{}, false
	}
	bin := distuv.Binomial{N: float64(n), P: p}
	lo := bin.CDF(float64(k)) < binomTail
	hi := bin.CDF(float64(k-1)) > 1-binomTail
	if !lo && !hi {
		return Warning{}, false
	}
	return Warning{
		Code: WarnEndpointPileup,
		Message: fmt.Sprintf("%d of %d durations landed at %s (baseline expectation %.1f): "+
			"the linear predictor may be too large; shrink coefficients, increase T, or reduce covariate variance",
			k, n, where, p*float64(n)),
	}, true
}
