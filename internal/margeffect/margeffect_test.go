package margeffect

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/survsim/coxsim/internal/baseline"
)

func testBaseline(t *testing.T, T int) *baseline.Table {
	t.Helper()
	tb, err := baseline.FromFunc(T, func(int) float64 { return 0.05 })
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func randomX(n, p int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, 0))
	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64()*0.5)
		}
	}
	return X
}

func TestMedianAndMean(t *testing.T) {
	xs := []float64{3, 1, 2}
	if got := Median(xs); got != 2 {
		t.Errorf("Median = %v, want 2", got)
	}
	if got := Mean(xs); got != 2 {
		t.Errorf("Mean = %v, want 2", got)
	}
	// Median must not reorder its input.
	if xs[0] != 3 || xs[1] != 1 || xs[2] != 2 {
		t.Errorf("Median mutated input: %v", xs)
	}
}

func TestComputeZeroCoefficient(t *testing.T) {
	tb := testBaseline(t, 50)
	X := randomX(100, 2, 1)
	// Covariate 0 carries no weight, so pinning it changes nothing.
	eff, err := Compute(tb, X, []float64{0, 0.5}, nil, nil, Spec{Covariate: 0, Low: 0, High: 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(eff.Effect) > 1e-12 {
		t.Errorf("effect = %v, want 0 for a zero coefficient", eff.Effect)
	}
}

func TestComputeSignConvention(t *testing.T) {
	tb := testBaseline(t, 50)
	X := randomX(200, 2, 2)
	// A positive coefficient shortens durations at the high value, so the
	// documented high-minus-low convention gives a negative effect.
	eff, err := Compute(tb, X, []float64{1.0, 0}, nil, nil, Spec{Covariate: 0, Low: 0, High: 1})
	if err != nil {
		t.Fatal(err)
	}
	if eff.Effect >= 0 {
		t.Errorf("effect = %v, want negative under a positive coefficient", eff.Effect)
	}

	neg, err := Compute(tb, X, []float64{-1.0, 0}, nil, nil, Spec{Covariate: 0, Low: 0, High: 1})
	if err != nil {
		t.Fatal(err)
	}
	if neg.Effect <= 0 {
		t.Errorf("effect = %v, want positive under a negative coefficient", neg.Effect)
	}
}

func TestComputeCounterfactuals(t *testing.T) {
	tb := testBaseline(t, 30)
	X := randomX(50, 3, 3)
	eff, err := Compute(tb, X, []float64{0.5, -0.5, 1}, nil, nil, Spec{Covariate: 1, Low: -1, High: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if eff.Low.X.At(i, 1) != -1 {
			t.Fatalf("low counterfactual column not pinned at row %d", i)
		}
		if eff.High.X.At(i, 2) != X.At(i, 2) {
			t.Fatalf("untouched column modified at row %d", i)
		}
	}
	// Expected durations must stay inside the grid.
	for i, d := range eff.High.ExpectedDur {
		if d < 0 || d > 30 {
			t.Errorf("expected duration[%d] = %v outside [0,30]", i, d)
		}
	}
	// The original matrix is never mutated.
	if eff.Low.X == X || eff.High.X == X {
		t.Error("counterfactual aliases the input matrix")
	}
}

func TestComputeTimeVaryingCoefficients(t *testing.T) {
	tb := testBaseline(t, 20)
	X := randomX(40, 2, 4)
	B := mat.NewDense(20, 2, nil)
	for tp := 0; tp < 20; tp++ {
		B.Set(tp, 0, 0.3*math.Log(float64(tp+1)))
		B.Set(tp, 1, -0.2)
	}
	eff, err := Compute(tb, X, nil, B, nil, Spec{Covariate: 0, Low: 0, High: 1, Compare: Mean})
	if err != nil {
		t.Fatal(err)
	}
	if _, c := eff.High.XB.Dims(); c != 20 {
		t.Errorf("XB has %d columns, want one per time point", c)
	}
	if eff.Effect >= 0 {
		t.Errorf("effect = %v, want negative for a positive time-varying coefficient", eff.Effect)
	}
}

func TestComputeBadCovariate(t *testing.T) {
	tb := testBaseline(t, 10)
	X := randomX(10, 2, 5)
	for _, col := range []int{-1, 2} {
		if _, err := Compute(tb, X, []float64{0, 0}, nil, nil, Spec{Covariate: col}); !errors.Is(err, ErrCovariate) {
			t.Errorf("Compute(col=%d) error = %v, want ErrCovariate", col, err)
		}
	}
}
