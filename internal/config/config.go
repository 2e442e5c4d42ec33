// Package config loads simulation designs from YAML files.
//
// A design file maps onto sim.Config; absent keys keep the stock
// defaults. Hazard functions and marginal-effect reducers are code, not
// data, so they stay out of the file format and are wired by the caller.
package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/survsim/coxsim/internal/linpred"
	"github.com/survsim/coxsim/internal/margeffect"
	"github.com/survsim/coxsim/internal/sim"
)

// Design is the YAML shape of a simulation configuration. Pointer fields
// distinguish "absent" from an explicit zero so defaults survive partial
// files.
type Design struct {
	N             int    `yaml:"n"`
	T             int    `yaml:"t"`
	Type          string `yaml:"type"`
	NumDataFrames int    `yaml:"num_data_frames"`

	FixedHazard bool  `yaml:"fixed_hazard"`
	Knots       int   `yaml:"knots"`
	Spline      *bool `yaml:"spline"`

	XVars int         `yaml:"xvars"`
	Mu    []float64   `yaml:"mu"`
	SD    []float64   `yaml:"sd"`
	Beta  []float64   `yaml:"beta"`
	Inter [][]float64 `yaml:"interactions"`

	Covariate int      `yaml:"covariate"`
	Low       float64  `yaml:"low"`
	High      *float64 `yaml:"high"`
	Compare   string   `yaml:"compare"`

	Censor     *float64 `yaml:"censor"`
	CensorCond bool     `yaml:"censor_cond"`

	OmitIndSurvive bool   `yaml:"omit_ind_survive"`
	Seed           uint64 `yaml:"seed"`
	Workers        int    `yaml:"workers"`
}

// Load reads and parses a design file.
func Load(path string) (*Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var d Design
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &d, nil
}

// SimConfig merges the design over the stock defaults.
func (d *Design) SimConfig() (sim.Config, error) {
	cfg := sim.Default()

	if d.N != 0 {
		cfg.N = d.N
	}
	if d.T != 0 {
		cfg.T = d.T
	}
	if d.Type != "" {
		mode, err := linpred.ParseMode(d.Type)
		if err != nil {
			return sim.Config{}, fmt.Errorf("config: %w", err)
		}
		cfg.Type = mode
	}
	if d.NumDataFrames != 0 {
		cfg.NumDataFrames = d.NumDataFrames
	}
	cfg.FixedHazard = d.FixedHazard
	if d.Knots != 0 {
		cfg.Knots = d.Knots
	}
	if d.Spline != nil {
		cfg.Spline = *d.Spline
	}
	if d.XVars != 0 {
		cfg.XVars = d.XVars
	}
	cfg.Mu = d.Mu
	cfg.SD = d.SD
	cfg.Beta = d.Beta
	if d.Inter != nil {
		w, err := denseFromRows(d.Inter)
		if err != nil {
			return sim.Config{}, err
		}
		cfg.Interactions = w
	}
	cfg.Covariate = d.Covariate
	cfg.Low = d.Low
	if d.High != nil {
		cfg.High = *d.High
	}
	switch d.Compare {
	case "", "median":
		cfg.Compare = margeffect.Median
	case "mean":
		cfg.Compare = margeffect.Mean
	default:
		return sim.Config{}, fmt.Errorf("config: unknown compare statistic %q", d.Compare)
	}
	if d.Censor != nil {
		cfg.Censor = *d.Censor
	}
	cfg.CensorCond = d.CensorCond
	cfg.OmitIndSurvive = d.OmitIndSurvive
	cfg.Seed = d.Seed
	cfg.Workers = d.Workers
	return cfg, nil
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	r := len(rows)
	if r == 0 {
		return nil, nil
	}
	c := len(rows[0])
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("config: interaction row %d has %d entries, want %d", i, len(row), c)
		}
		m.SetRow(i, row)
	}
	return m, nil
}
