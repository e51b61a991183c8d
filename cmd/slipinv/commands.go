package main

import (
	"fmt"
	"os"

	"github.com/notargets/slipinv/inversion"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

func setup(conf *viper.Viper) (settings, *zap.Logger, error) {
	s, err := loadSettings(conf)
	if err != nil {
		return s, nil, err
	}
	log, err := inversion.NewLogger(s.Inversion.LogLevel)
	if err != nil {
		return s, nil, err
	}
	return s, log, nil
}

func newInvertCmd(conf *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invert",
		Short: "Invert hill-surface observations assuming a flat surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := setup(conf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sc, err := buildScenario(cmd.Context(), s, log)
			if err != nil {
				return err
			}
			op, err := inversion.NewOperator(sc.sys, sc.obs, s.Inversion.RegParam)
			if err != nil {
				return err
			}
			if conf.GetBool("check_adjoint") {
				rep, err := inversion.CheckAdjoint(op, 20, 1)
				if err != nil {
					return err
				}
				if err = rep.Err(conf.GetFloat64("adjoint_tol")); err != nil {
					return err
				}
				log.Info("adjoint check passed", zap.Float64("max_rel_err", rep.MaxRelErr))
			}
			res, err := inversion.Invert(op, sc.bObs, s.Inversion, log)
			if err != nil {
				return err
			}
			return sc.writeVertexSlip(cmd.OutOrStdout(), res.Slip)
		},
	}
	cmd.Flags().Bool("check_adjoint", true, "Run a dot-product test before inverting")
	cmd.Flags().Float64("adjoint_tol", 1.e-10, "Relative tolerance of the dot-product test")
	return cmd
}

func newPenaltyCmd(conf *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "penalty",
		Short: "Invert with the penalty continuation on the forward relation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := setup(conf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sc, err := buildScenario(cmd.Context(), s, log)
			if err != nil {
				return err
			}
			d, err := inversion.NewPenaltyDriver(sc.sys, sc.obs, s.Inversion, log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := d.WithObserver(func(r inversion.StageReport) {
				fmt.Fprintf(out, "stage %d: W=%.0e tol=%.0e iterations=%d residual %.3e -> %.3e (%s)\n",
					r.Stage, r.Weight, r.Tol, r.Iterations, r.ResidualBefore, r.ResidualAfter, r.Reason)
			}).Run(sc.bObs)
			if err != nil {
				return err
			}
			return sc.writeVertexSlip(out, res.Slip)
		},
	}
	p := inversion.DefaultConfig().Penalty
	f := cmd.Flags()
	f.Int("penalty.stages", p.Stages, "Continuation stages")
	f.Float64("penalty.initial_weight", p.InitialWeight, "Penalty weight before the first stage")
	f.Float64("penalty.weight_growth", p.WeightGrowth, "Weight multiplier per stage")
	f.Float64("penalty.initial_tol", p.InitialTol, "Tolerance before the first stage")
	f.Float64("penalty.tol_decay", p.TolDecay, "Tolerance divisor per stage")
	f.Int("penalty.max_iterations", p.MaxIterations, "LSMR iteration cap per stage, 0 for min(m, n)")
	return cmd
}

func newAdjointCmd(conf *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjoint-check",
		Short: "Dot-product test of the matrix-free operator pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := setup(conf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sc, err := buildScenario(cmd.Context(), s, log)
			if err != nil {
				return err
			}
			op, err := inversion.NewOperator(sc.sys, sc.obs, s.Inversion.RegParam)
			if err != nil {
				return err
			}
			rep, err := inversion.CheckAdjoint(op, conf.GetInt("trials"), uint64(conf.GetInt64("seed")))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trials=%d max relative mismatch %.3e (trial %d)\n",
				rep.Trials, rep.MaxRelErr, rep.Worst)
			return rep.Err(conf.GetFloat64("adjoint_tol"))
		},
	}
	cmd.Flags().Int("trials", 20, "Random probe pairs")
	cmd.Flags().Int64("seed", 1, "Probe seed")
	cmd.Flags().Float64("adjoint_tol", 1.e-10, "Relative tolerance")
	return cmd
}

func newGreensCmd(conf *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greens",
		Short: "Build the dense Green's function matrix of the flat system",
		Long: `
Builds G = M·F one unit slip at a time. With --out the matrix is written as a
zstd compressed file; with --compare a previously written matrix is loaded
and checked against the fresh one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := setup(conf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sc, err := buildScenario(cmd.Context(), s, log)
			if err != nil {
				return err
			}
			G, err := inversion.BuildGreens(cmd.Context(), sc.sys, sc.obs, s.BEM.Workers)
			if err != nil {
				return err
			}
			r, c := G.Dims()
			fmt.Fprintf(cmd.OutOrStdout(), "green's functions: %d observations x %d slip dofs\n", r, c)

			if path := conf.GetString("out"); path != "" {
				if err = saveGreensFile(path, G); err != nil {
					return err
				}
				log.Info("wrote green's functions", zap.String("path", path))
			}
			if path := conf.GetString("compare"); path != "" {
				old, err := loadGreensFile(path)
				if err != nil {
					return err
				}
				if or, oc := old.Dims(); or != r || oc != c {
					return errors.Errorf("%s holds a %dx%d matrix, want %dx%d", path, or, oc, r, c)
				}
				var diff mat.Dense
				diff.Sub(G, old)
				fmt.Fprintf(cmd.OutOrStdout(), "1-norm of the difference to %s: %.3e\n", path, mat.Norm(&diff, 1))
			}
			return nil
		},
	}
	cmd.Flags().String("out", "", "Write the matrix to this file")
	cmd.Flags().String("compare", "", "Compare against a previously written matrix")
	return cmd
}

func saveGreensFile(path string, G *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = inversion.SaveGreens(f, G); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadGreensFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return inversion.LoadGreens(f)
}
