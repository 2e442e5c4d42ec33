package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/survsim/coxsim/internal/baseline"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Draw one flexible baseline hazard and print its table",
		Long: `Draw a flexible baseline hazard and print the PDF, CDF, survivor and
hazard columns as CSV, for eyeballing the shapes a design will sample
against before committing to a full simulation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			T, _ := f.GetInt("t")
			knots, _ := f.GetInt("knots")
			spline, _ := f.GetBool("spline")
			seed, _ := f.GetUint64("seed")

			tb, err := baseline.Flexible(T, baseline.FlexibleOptions{Knots: knots, Spline: spline}, rand.NewPCG(seed, 0))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "t,pdf,cdf,survivor,hazard")
			for i := 0; i < tb.T(); i++ {
				fmt.Fprintf(w, "%d,%g,%g,%g,%g\n", i+1, tb.PDF[i], tb.CDF[i], tb.Survivor[i], tb.Hazard[i])
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("t", 100, "Time horizon")
	f.Int("knots", 8, "Knot count")
	f.Bool("spline", true, "Interpolate with a spline")
	f.Uint64("seed", 0, "Random seed")
	return cmd
}
