package sim

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/survsim/coxsim/internal/baseline"
	"github.com/survsim/coxsim/internal/linpred"
	"github.com/survsim/coxsim/internal/margeffect"
)

// ErrConfig tags every fatal configuration error. All checks run before
// any sampling occurs.
var ErrConfig = errors.New("sim: invalid configuration")

// Config is the full simulation design. Start from Default and override.
type Config struct {
	// N observations, time horizon T.
	N, T int

	// Type selects the generative mode: static, tvc or tvbeta.
	Type linpred.Mode

	// HazardFunc, when set, replaces the flexible baseline and is reused
	// across all replications.
	HazardFunc baseline.HazardFunc

	// NumDataFrames is the number of independent replications.
	NumDataFrames int

	// FixedHazard builds one flexible baseline and reuses it everywhere.
	FixedHazard bool

	// Knots and Spline parameterize the flexible baseline.
	Knots  int
	Spline bool

	// X, when supplied, fixes the covariates across replications (N×P, or
	// N·T×P under tvc). Otherwise XVars columns are drawn from
	// Normal(Mu, SD), scalars broadcasting to all columns.
	X      *mat.Dense
	XVars  int
	Mu, SD []float64

	// Beta fixes static coefficients; BetaMatrix (T×P) fixes time-varying
	// ones. Both nil draws Normal(0, 0.1) per covariate.
	Beta       []float64
	BetaMatrix *mat.Dense

	// Interactions is an optional P×P pairwise-weight matrix.
	Interactions *mat.Dense

	// Marginal-effect settings: zero-based covariate column, the two
	// pinned values, and the reducer (nil means median).
	Covariate int
	Low, High float64
	Compare   margeffect.Reducer

	// Censor is the right-censoring proportion; CensorCond ranks a
	// secondary covariate-driven predictor instead of censoring uniformly.
	Censor     float64
	CensorCond bool

	// OmitIndSurvive drops the N×T individual-survivor matrix from the
	// results to bound memory on large designs.
	OmitIndSurvive bool

	// Seed roots the deterministic replication streams. Workers caps
	// concurrent replications; zero means GOMAXPROCS.
	Seed    uint64
	Workers int
}

// Default returns the stock design: 1000 observations over 100 time
// points, three standard-normal-ish covariates, drawn coefficients, a
// spline flexible baseline, 10% uniform censoring, and a median marginal
// effect of the first covariate between 0 and 1.
func Default() Config {
	return Config{
		N:             1000,
		T:             100,
		Type:          linpred.ModeStatic,
		NumDataFrames: 1,
		Knots:         baseline.DefaultKnots,
		Spline:        true,
		XVars:         linpred.DefaultXVars,
		Covariate:     0,
		Low:           0,
		High:          1,
		Censor:        0.1,
	}
}

// covariates returns the effective number of covariate columns P,
// reconciling X, Beta, BetaMatrix and XVars.
func (c *Config) covariates() int {
	if c.X != nil {
		_, p := c.X.Dims()
		return p
	}
	if c.Beta != nil {
		return len(c.Beta)
	}
	if c.BetaMatrix != nil {
		_, p := c.BetaMatrix.Dims()
		return p
	}
	if c.XVars > 0 {
		return c.XVars
	}
	return linpred.DefaultXVars
}

// validate rejects every fatal configuration error up front.
func (c *Config) validate() error {
	if c.N < 1 {
		return fmt.Errorf("%w: N = %d, want >= 1", ErrConfig, c.N)
	}
	if c.T < 1 {
		return fmt.Errorf("%w: T = %d, want >= 1", ErrConfig, c.T)
	}
	if c.NumDataFrames < 1 {
		return fmt.Errorf("%w: num data frames = %d, want >= 1", ErrConfig, c.NumDataFrames)
	}
	if _, err := linpred.ParseMode(string(c.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Censor < 0 || c.Censor >= 1 {
		return fmt.Errorf("%w: censor = %v, want in [0, 1)", ErrConfig, c.Censor)
	}
	if c.Type == linpred.ModeTVC && c.CensorCond {
		return fmt.Errorf("%w: conditional censoring is undefined under tvc, which censors inside the interval algorithm", ErrConfig)
	}

	p := c.covariates()
	if c.Beta != nil && len(c.Beta) != p {
		return fmt.Errorf("%w: beta has length %d, covariates have %d columns", ErrConfig, len(c.Beta), p)
	}
	if c.BetaMatrix != nil {
		if c.Type != linpred.ModeTVBeta {
			return fmt.Errorf("%w: coefficient matrix requires type tvbeta", ErrConfig)
		}
		r, bc := c.BetaMatrix.Dims()
		if r != c.T || bc != p {
			return fmt.Errorf("%w: coefficient matrix is %dx%d, want %dx%d", ErrConfig, r, bc, c.T, p)
		}
	}
	if c.X != nil {
		r, xc := c.X.Dims()
		if xc != p {
			return fmt.Errorf("%w: X has %d columns, want %d", ErrConfig, xc, p)
		}
		want := c.N
		if c.Type == linpred.ModeTVC {
			want = c.N * c.T
		}
		if r != want {
			return fmt.Errorf("%w: X has %d rows, want %d", ErrConfig, r, want)
		}
	}
	if err := linpred.ValidateInteractions(c.Interactions, p); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Covariate < 0 || c.Covariate >= p {
		return fmt.Errorf("%w: marginal-effect covariate %d out of range [0,%d)", ErrConfig, c.Covariate, p)
	}
	if _, err := linpred.Broadcast(c.Mu, p, linpred.DefaultMu); err != nil {
		return fmt.Errorf("%w: mu: %v", ErrConfig, err)
	}
	if _, err := linpred.Broadcast(c.SD, p, linpred.DefaultSD); err != nil {
		return fmt.Errorf("%w: sd: %v", ErrConfig, err)
	}
	return nil
}
