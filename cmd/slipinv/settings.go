package main

import (
	"github.com/notargets/slipinv/bem"
	"github.com/notargets/slipinv/inversion"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type meshSettings struct {
	FaultLength float64
	TopDepth    float64
	SurfWidth   float64
	NSurf       int
	NFault      int
	HillHeight  float64
	HillRadius  float64
}

func defaultMeshSettings() meshSettings {
	return meshSettings{
		FaultLength: 1,
		TopDepth:    -0.5,
		SurfWidth:   10,
		NSurf:       20,
		HillHeight:  0.2,
		HillRadius:  0.5,
	}
}

type settings struct {
	Inversion inversion.Config
	BEM       bem.Config
	Mesh      meshSettings
}

// loadSettings starts from the package defaults and applies every key that
// is set in conf
func loadSettings(conf *viper.Viper) (settings, error) {
	s := settings{
		Inversion: inversion.DefaultConfig(),
		BEM:       bem.DefaultConfig(),
		Mesh:      defaultMeshSettings(),
	}
	if conf.IsSet("log_level") {
		lvl, err := zapcore.ParseLevel(conf.GetString("log_level"))
		if err != nil {
			return s, errors.Wrapf(inversion.ErrInvalidConfig, "log_level: %v", err)
		}
		s.Inversion.LogLevel = lvl
	}
	if conf.IsSet("preconditioner") {
		p, err := bem.ParsePreconditioner(conf.GetString("preconditioner"))
		if err != nil {
			return s, err
		}
		s.BEM.Preconditioner = p
	}
	if conf.IsSet("which_dims") {
		s.Inversion.WhichDims = conf.GetIntSlice("which_dims")
	}

	ic := &s.Inversion
	floatKeys := map[string]*float64{
		"reg_param":              &ic.RegParam,
		"atol":                   &ic.ATol,
		"btol":                   &ic.BTol,
		"conlim":                 &ic.ConLim,
		"penalty.initial_weight": &ic.Penalty.InitialWeight,
		"penalty.weight_growth":  &ic.Penalty.WeightGrowth,
		"penalty.initial_tol":    &ic.Penalty.InitialTol,
		"penalty.tol_decay":      &ic.Penalty.TolDecay,
		"shear_modulus":          &s.BEM.ShearModulus,
		"poisson_ratio":          &s.BEM.PoissonRatio,
		"nearfield_threshold":    &s.BEM.NearfieldThreshold,
		"core_radius":            &s.BEM.CoreRadius,
		"surface_coupling":       &s.BEM.SurfaceCoupling,
		"inner_tol":              &s.BEM.Tolerance,
		"fault_length":           &s.Mesh.FaultLength,
		"top_depth":              &s.Mesh.TopDepth,
		"surf_width":             &s.Mesh.SurfWidth,
		"hill_height":            &s.Mesh.HillHeight,
		"hill_radius":            &s.Mesh.HillRadius,
	}
	for key, dst := range floatKeys {
		if conf.IsSet(key) {
			*dst = conf.GetFloat64(key)
		}
	}
	intKeys := map[string]*int{
		"max_iterations":         &ic.MaxIterations,
		"penalty.stages":         &ic.Penalty.Stages,
		"penalty.max_iterations": &ic.Penalty.MaxIterations,
		"farfield_order":         &s.BEM.FarfieldOrder,
		"nearfield_order":        &s.BEM.NearfieldOrder,
		"inner_max_iterations":   &s.BEM.MaxIterations,
		"workers":                &s.BEM.Workers,
		"n_surf":                 &s.Mesh.NSurf,
		"n_fault":                &s.Mesh.NFault,
	}
	for key, dst := range intKeys {
		if conf.IsSet(key) {
			*dst = conf.GetInt(key)
		}
	}
	if s.Mesh.NFault == 0 {
		s.Mesh.NFault = max(2, s.Mesh.NSurf/5)
	}

	if err := s.Inversion.Validate(); err != nil {
		return s, err
	}
	if err := s.BEM.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
