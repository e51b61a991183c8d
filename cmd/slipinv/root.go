package main

import (
	"strings"

	"github.com/notargets/slipinv/bem"
	"github.com/notargets/slipinv/inversion"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SLIPINV"

func newRootCmd() *cobra.Command {
	conf := viper.New()
	root := &cobra.Command{
		Use:   "slipinv",
		Short: "Matrix-free regularized fault slip inversion",
		Long: `
slipinv recovers slip on a buried fault from free surface displacements. The
forward problem is a boundary-integral solve; the inversion only applies it
and its adjoint inside an LSMR least-squares iteration.

Settings are read from flags, SLIPINV_* environment variables (dots become
underscores) and an optional config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			conf.SetEnvPrefix(envPrefix)
			conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
			conf.AutomaticEnv()
			if cfg := conf.GetString("config"); cfg != "" {
				conf.SetConfigFile(cfg)
				return errors.Wrap(conf.ReadInConfig(), "reading config")
			}
			return nil
		},
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		newInvertCmd(conf),
		newPenaltyCmd(conf),
		newAdjointCmd(conf),
		newGreensCmd(conf),
	)
	return root
}

func addGlobalFlags(f *flag.FlagSet) {
	ic, bc := inversion.DefaultConfig(), bem.DefaultConfig()
	f.String("config", "", "Configuration file (yaml, toml or json)")
	f.String("log_level", ic.LogLevel.String(), "One of debug, info, warn, error")

	f.String("preconditioner", bc.Preconditioner.String(), "Inner solve: ilu, jacobi or none")
	f.Float64("shear_modulus", bc.ShearModulus, "Elastic shear modulus")
	f.Float64("poisson_ratio", bc.PoissonRatio, "Poisson ratio")
	f.Int("farfield_order", bc.FarfieldOrder, "Quadrature points per direction, far field")
	f.Int("nearfield_order", bc.NearfieldOrder, "Quadrature points per direction, near field")
	f.Float64("nearfield_threshold", bc.NearfieldThreshold, "Near field distance in triangle diameters")
	f.Float64("core_radius", bc.CoreRadius, "Kernel regularization length")
	f.Float64("surface_coupling", bc.SurfaceCoupling, "Norm of the surface self-interaction block")
	f.Float64("inner_tol", bc.Tolerance, "Relative tolerance of iterative inner solves")
	f.Int("inner_max_iterations", bc.MaxIterations, "Iteration cap of iterative inner solves")
	f.Int("workers", bc.Workers, "Assembly goroutines")

	f.Float64("reg_param", ic.RegParam, "Regularization weight λ")
	f.IntSlice("which_dims", ic.WhichDims, "Observed displacement components")
	f.Float64("atol", ic.ATol, "LSMR atol")
	f.Float64("btol", ic.BTol, "LSMR btol")
	f.Float64("conlim", ic.ConLim, "LSMR condition limit, 0 disables")
	f.Int("max_iterations", ic.MaxIterations, "LSMR iteration cap, 0 for min(m, n)")

	ms := defaultMeshSettings()
	f.Float64("fault_length", ms.FaultLength, "Fault half length")
	f.Float64("top_depth", ms.TopDepth, "Depth of the fault top edge (negative)")
	f.Float64("surf_width", ms.SurfWidth, "Free surface half width")
	f.Int("n_surf", ms.NSurf, "Surface vertices per side")
	f.Int("n_fault", ms.NFault, "Fault vertices per side, 0 for max(2, n_surf/5)")
	f.Float64("hill_height", ms.HillHeight, "Height of the Gaussian hill in the data geometry")
	f.Float64("hill_radius", ms.HillRadius, "Radius of the Gaussian hill")
}
