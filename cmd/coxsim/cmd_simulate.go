package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/survsim/coxsim/internal/config"
	"github.com/survsim/coxsim/internal/export"
	"github.com/survsim/coxsim/internal/linpred"
	"github.com/survsim/coxsim/internal/logging"
	"github.com/survsim/coxsim/internal/margeffect"
	"github.com/survsim/coxsim/internal/sim"
	"github.com/survsim/coxsim/internal/store"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate simulated survival datasets",
		Long: `Generate one or more replications of simulated survival data.

Settings come from a YAML design file (--config), command-line flags, or
both; flags override the file. Each replication's data frame can be
exported to CSV and its summary appended to a SQLite run database.

Example:
  coxsim simulate --n 1000 --t 100 --censor 0.2 --out data.csv`,
		RunE: runSimulate,
	}

	f := cmd.Flags()
	f.String("config", "", "YAML design file")
	f.Int("n", 1000, "Number of observations")
	f.Int("t", 100, "Time horizon")
	f.String("type", "static", "Generative mode: static, tvc, tvbeta")
	f.Int("reps", 1, "Number of independent replications")
	f.Bool("fixed-hazard", false, "Reuse one flexible baseline across replications")
	f.Int("knots", 8, "Flexible-baseline knot count")
	f.Bool("spline", true, "Interpolate the flexible baseline with a spline")
	f.Int("xvars", 3, "Number of drawn covariates")
	f.Float64Slice("mu", nil, "Covariate means (scalar broadcasts)")
	f.Float64Slice("sd", nil, "Covariate standard deviations (scalar broadcasts)")
	f.Float64Slice("beta", nil, "Fixed coefficients (drawn when omitted)")
	f.Float64("censor", 0.1, "Right-censoring proportion")
	f.Bool("censor-cond", false, "Censor conditionally on a secondary covariate score")
	f.Int("covariate", 0, "Marginal-effect covariate column (zero-based)")
	f.Float64("low", 0, "Marginal-effect low value")
	f.Float64("high", 1, "Marginal-effect high value")
	f.String("compare", "median", "Marginal-effect summary statistic: median, mean")
	f.Bool("omit-ind-survive", false, "Skip the N x T individual-survivor matrix")
	f.Uint64("seed", 0, "Root random seed")
	f.Int("workers", 0, "Concurrent replications (0 = GOMAXPROCS)")
	f.String("out", "", "CSV output path (replication index appended when reps > 1)")
	f.String("store", "", "SQLite run database to append summaries to")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := simulateConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := cmd.Flags().GetString("log-level")
	logger := logging.NewLogger(level, cmd.ErrOrStderr())

	out, err := sim.Run(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	p := 0
	if len(out.Bundles()) > 0 {
		_, p = out.Bundles()[0].XData.Dims()
	}
	if outPath != "" {
		for r, res := range out.Bundles() {
			path := replicationPath(outPath, r+1, out.Len())
			if err := export.WriteFile(path, cfg.Type, res.Data, p); err != nil {
				return err
			}
			logger.Info("wrote dataset", "path", path, "rows", len(res.Data))
		}
	}

	storePath, _ := cmd.Flags().GetString("store")
	if storePath != "" {
		db, err := store.Open(storePath)
		if err != nil {
			return err
		}
		defer db.Close()
		for r, res := range out.Bundles() {
			if err := db.Save(cmd.Context(), cfg, r+1, res); err != nil {
				return err
			}
		}
	}

	return printSummary(cmd, cfg, out)
}

// simulateConfig assembles the design: defaults, then the YAML file, then
// any explicitly set flags.
func simulateConfig(cmd *cobra.Command) (sim.Config, error) {
	f := cmd.Flags()
	cfg := sim.Default()
	if path, _ := f.GetString("config"); path != "" {
		d, err := config.Load(path)
		if err != nil {
			return sim.Config{}, err
		}
		cfg, err = d.SimConfig()
		if err != nil {
			return sim.Config{}, err
		}
	}

	if f.Changed("n") {
		cfg.N, _ = f.GetInt("n")
	}
	if f.Changed("t") {
		cfg.T, _ = f.GetInt("t")
	}
	if f.Changed("type") {
		s, _ := f.GetString("type")
		mode, err := linpred.ParseMode(s)
		if err != nil {
			return sim.Config{}, err
		}
		cfg.Type = mode
	}
	if f.Changed("reps") {
		cfg.NumDataFrames, _ = f.GetInt("reps")
	}
	if f.Changed("fixed-hazard") {
		cfg.FixedHazard, _ = f.GetBool("fixed-hazard")
	}
	if f.Changed("knots") {
		cfg.Knots, _ = f.GetInt("knots")
	}
	if f.Changed("spline") {
		cfg.Spline, _ = f.GetBool("spline")
	}
	if f.Changed("xvars") {
		cfg.XVars, _ = f.GetInt("xvars")
	}
	if f.Changed("mu") {
		cfg.Mu, _ = f.GetFloat64Slice("mu")
	}
	if f.Changed("sd") {
		cfg.SD, _ = f.GetFloat64Slice("sd")
	}
	if f.Changed("beta") {
		cfg.Beta, _ = f.GetFloat64Slice("beta")
	}
	if f.Changed("censor") {
		cfg.Censor, _ = f.GetFloat64("censor")
	}
	if f.Changed("censor-cond") {
		cfg.CensorCond, _ = f.GetBool("censor-cond")
	}
	if f.Changed("covariate") {
		cfg.Covariate, _ = f.GetInt("covariate")
	}
	if f.Changed("low") {
		cfg.Low, _ = f.GetFloat64("low")
	}
	if f.Changed("high") {
		cfg.High, _ = f.GetFloat64("high")
	}
	if f.Changed("compare") {
		s, _ := f.GetString("compare")
		switch s {
		case "median":
			cfg.Compare = margeffect.Median
		case "mean":
			cfg.Compare = margeffect.Mean
		default:
			return sim.Config{}, fmt.Errorf("unknown compare statistic %q", s)
		}
	}
	if f.Changed("omit-ind-survive") {
		cfg.OmitIndSurvive, _ = f.GetBool("omit-ind-survive")
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	return cfg, nil
}

// replicationPath appends the replication index before the extension when
// multiple datasets are written: data.csv -> data_2.csv.
func replicationPath(path string, rep, total int) string {
	if total == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), rep, ext)
}

type replicationSummary struct {
	Replication int     `json:"replication"`
	Rows        int     `json:"rows"`
	Events      int     `json:"events"`
	Censored    int     `json:"censored"`
	MargEffect  float64 `json:"marg_effect"`
	Warnings    int     `json:"warnings"`
}

func printSummary(cmd *cobra.Command, cfg sim.Config, out *sim.Output) error {
	summaries := make([]replicationSummary, out.Len())
	for r, res := range out.Bundles() {
		s := replicationSummary{
			Replication: r + 1,
			Rows:        len(res.Data),
			MargEffect:  res.MargEffect.Effect,
			Warnings:    len(res.Warnings),
		}
		// Under tvc the data frame has one row per interval; count
		// censored observations, not censored rows.
		seen := map[int]bool{}
		for _, row := range res.Data {
			if row.Failed {
				s.Events++
			}
			seen[row.ID] = true
		}
		s.Censored = len(seen) - s.Events
		summaries[r] = s
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(summaries)
	}
	w := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(w, "replication %d: %d rows, %d events, %d censored, marginal effect %.4f",
			s.Replication, s.Rows, s.Events, s.Censored, s.MargEffect)
		if s.Warnings > 0 {
			fmt.Fprintf(w, " (%d warnings)", s.Warnings)
		}
		fmt.Fprintln(w)
	}
	return nil
}
