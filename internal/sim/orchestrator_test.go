package sim

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/survsim/coxsim/internal/linpred"
)

func TestRunTwoReplicationScenario(t *testing.T) {
	cfg := Default()
	cfg.NumDataFrames = 2
	cfg.Seed = 99

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out.Len())
	}
	if _, ok := out.Single(); ok {
		t.Error("Single() succeeded on a two-replication output")
	}
	for r, res := range out.Bundles() {
		if len(res.Data) != 1000 {
			t.Errorf("replication %d: %d rows, want 1000", r+1, len(res.Data))
		}
		if _, p := res.XData.Dims(); p != 3 {
			t.Errorf("replication %d: %d covariates, want 3", r+1, p)
		}
		for _, row := range res.Data {
			if row.Y < 1 || row.Y > 100 {
				t.Fatalf("replication %d: y = %d outside [1,100]", r+1, row.Y)
			}
			if len(row.X) != 3 {
				t.Fatalf("replication %d: row carries %d covariates, want 3", r+1, len(row.X))
			}
		}
		if res.MargEffect == nil {
			t.Errorf("replication %d: missing marginal effect", r+1)
		}
		if res.Beta == nil || len(res.Beta) != 3 {
			t.Errorf("replication %d: realized beta = %v", r+1, res.Beta)
		}
		nr, nc := res.IndSurvive.Dims()
		if nr != 1000 || nc != 100 {
			t.Errorf("replication %d: IndSurvive dims %dx%d, want 1000x100", r+1, nr, nc)
		}
	}
}

func TestRunSingle(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 50, 20

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, ok := out.Single()
	if !ok {
		t.Fatal("Single() failed on a one-replication output")
	}
	if len(res.Data) != 50 {
		t.Errorf("%d rows, want 50", len(res.Data))
	}
}

// TestBaselineReuse pins which builder runs under each hazard setting: a
// fixed flexible baseline is built exactly once and shared, an unfixed one
// is rebuilt per replication, and a user hazard function is always shared.
func TestBaselineReuse(t *testing.T) {
	base := Default()
	base.N, base.T = 100, 30
	base.NumDataFrames = 3
	base.Seed = 7

	t.Run("fixed hazard shares one table", func(t *testing.T) {
		cfg := base
		cfg.FixedHazard = true
		out, err := Run(context.Background(), cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		first := out.Bundles()[0].Baseline
		for r, res := range out.Bundles() {
			if res.Baseline != first {
				t.Errorf("replication %d rebuilt the baseline", r+1)
			}
		}
	})

	t.Run("unfixed hazard rebuilds per replication", func(t *testing.T) {
		out, err := Run(context.Background(), base, nil)
		if err != nil {
			t.Fatal(err)
		}
		bundles := out.Bundles()
		if bundles[0].Baseline == bundles[1].Baseline {
			t.Error("replications share a baseline despite FixedHazard=false")
		}
		same := true
		for i := range bundles[0].Baseline.CDF {
			if bundles[0].Baseline.CDF[i] != bundles[1].Baseline.CDF[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("rebuilt baselines are identical")
		}
	})

	t.Run("user hazard function always shared", func(t *testing.T) {
		cfg := base
		cfg.HazardFunc = func(t int) float64 { return 0.1 }
		out, err := Run(context.Background(), cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		first := out.Bundles()[0].Baseline
		for r, res := range out.Bundles() {
			if res.Baseline != first {
				t.Errorf("replication %d rebuilt the user baseline", r+1)
			}
		}
	})
}

func TestRunDeterministic(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 200, 40
	cfg.NumDataFrames = 4
	cfg.Seed = 1234

	run := func(workers int) *Output {
		c := cfg
		c.Workers = workers
		out, err := Run(context.Background(), c, nil)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	serial := run(1)
	parallel := run(4)
	for r := 0; r < 4; r++ {
		a, b := serial.Bundles()[r], parallel.Bundles()[r]
		for i := range a.Data {
			if a.Data[i].Y != b.Data[i].Y || a.Data[i].Failed != b.Data[i].Failed {
				t.Fatalf("replication %d row %d differs across worker counts", r+1, i)
			}
		}
		for i := range a.Baseline.CDF {
			if a.Baseline.CDF[i] != b.Baseline.CDF[i] {
				t.Fatalf("replication %d baseline differs across worker counts", r+1)
			}
		}
	}
}

func TestRunCensoringFraction(t *testing.T) {
	cfg := Default()
	cfg.N = 4000
	cfg.T = 50
	cfg.Censor = 0.25
	cfg.HazardFunc = func(t int) float64 { return 0.2 }
	cfg.Seed = 5

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	uncensored := 0
	for _, row := range res.Data {
		if row.Failed {
			uncensored++
		}
	}
	censored := cfg.N - uncensored
	// At least the configured fraction is censored; administrative
	// censoring at T can only add to it.
	if censored < 1000 {
		t.Errorf("censored %d of 4000, want >= 1000", censored)
	}
	if frac := float64(censored) / 4000; frac > 0.25+3/math.Sqrt(4000) {
		t.Errorf("censored fraction %v far above the 0.25 target", frac)
	}
}

func TestRunConditionalCensoring(t *testing.T) {
	cfg := Default()
	cfg.N = 1000
	cfg.T = 50
	cfg.Censor = 0.2
	cfg.CensorCond = true
	cfg.Seed = 31

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	censored := 0
	for _, row := range res.Data {
		if !row.Failed {
			censored++
		}
	}
	if censored < 200 {
		t.Errorf("censored %d of 1000, want >= 200", censored)
	}
}

func TestRunInteractionTerm(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 300, 30
	cfg.Beta = []float64{0.5, -0.5, 1.0}
	w := mat.NewDense(3, 3, nil)
	w.Set(0, 1, 2.0)
	w.Set(1, 0, 2.0)
	cfg.Interactions = w
	cfg.Seed = 77

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	for i := 0; i < cfg.N; i++ {
		x1, x2, x3 := res.XData.At(i, 0), res.XData.At(i, 1), res.XData.At(i, 2)
		want := 0.5*x1 - 0.5*x2 + x3 + 2.0*x1*x2
		if got := res.XB.At(i, 0); math.Abs(got-want) > 1e-12 {
			t.Fatalf("row %d: XB = %v, want %v (with interaction term)", i, got, want)
		}
	}
}

func TestRunDegenerateHorizon(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 30, 1
	cfg.Censor = 0.3
	cfg.Seed = 2

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	for _, row := range res.Data {
		if row.Y != 1 {
			t.Errorf("T=1 produced y = %d", row.Y)
		}
	}
}

func TestRunTVCRows(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 100, 20
	cfg.Type = linpred.ModeTVC
	cfg.Censor = 0.2
	cfg.Seed = 13

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	if len(res.Data) < 100 {
		t.Fatalf("%d interval rows for 100 observations", len(res.Data))
	}
	for _, row := range res.Data {
		if row.End != row.Start+1 {
			t.Fatalf("interval (%d,%d] is not a unit step", row.Start, row.End)
		}
	}
}

func TestRunOmitIndSurvive(t *testing.T) {
	cfg := Default()
	cfg.N, cfg.T = 50, 10
	cfg.OmitIndSurvive = true

	out, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := out.Single()
	if res.IndSurvive != nil {
		t.Error("IndSurvive allocated despite OmitIndSurvive")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := Default()
	cfg.Type = "gamma"
	if _, err := Run(context.Background(), cfg, nil); err == nil {
		t.Error("Run accepted an unknown type")
	}
}
