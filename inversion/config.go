// Package inversion recovers fault slip from surface displacement
// observations. The forward relation slip → observations is never formed
// explicitly: an Operator wraps the boundary solves and the observation map
// as a matrix-free pair, and a Krylov least-squares method only ever applies
// it and its transpose.
package inversion

import (
	"math"

	"github.com/notargets/slipinv/lsmr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrInvalidConfig = errors.New("invalid inversion config")
	ErrShape         = errors.New("operator shape mismatch")
	ErrAdjoint       = errors.New("operator pair is not adjoint")
)

// PenaltyConfig is the schedule of the penalty continuation. Stage s runs
// with weight InitialWeight·WeightGrowth^(s+1) and tolerance
// InitialTol/TolDecay^(s+1).
type PenaltyConfig struct {
	Stages        int
	InitialWeight float64
	WeightGrowth  float64
	InitialTol    float64
	TolDecay      float64
	MaxIterations int // Per stage, 0 means the LSMR default
}

type Config struct {
	LogLevel zapcore.Level

	RegParam  float64 // λ
	WhichDims []int   // Observed displacement components

	// Outer least-squares stopping rule
	ATol, BTol    float64
	ConLim        float64
	MaxIterations int

	Penalty PenaltyConfig
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  zapcore.InfoLevel,
		RegParam:  0.003,
		WhichDims: []int{0, 1},
		ATol:      1.e-6,
		BTol:      1.e-6,
		ConLim:    1.e8,
		Penalty: PenaltyConfig{
			Stages:        5,
			InitialWeight: 1,
			WeightGrowth:  10,
			InitialTol:    1.e-5,
			TolDecay:      10,
		},
	}
}

func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.RegParam) || c.RegParam < 0:
		return errors.Wrapf(ErrInvalidConfig, "reg_param %g must be non-negative", c.RegParam)
	case len(c.WhichDims) == 0:
		return errors.Wrap(ErrInvalidConfig, "which_dims is empty")
	case c.MaxIterations < 0:
		return errors.Wrapf(ErrInvalidConfig, "max_iterations %d negative", c.MaxIterations)
	}
	if err := c.lsmrSettings().Validate(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	p := c.Penalty
	switch {
	case p.Stages < 0:
		return errors.Wrapf(ErrInvalidConfig, "penalty stages %d negative", p.Stages)
	case !(p.InitialWeight > 0) || !(p.WeightGrowth >= 1):
		return errors.Wrapf(ErrInvalidConfig, "penalty weight %g growth %g", p.InitialWeight, p.WeightGrowth)
	case !(p.InitialTol > 0) || !(p.TolDecay >= 1):
		return errors.Wrapf(ErrInvalidConfig, "penalty tol %g decay %g", p.InitialTol, p.TolDecay)
	case p.MaxIterations < 0:
		return errors.Wrapf(ErrInvalidConfig, "penalty max_iterations %d negative", p.MaxIterations)
	}
	return nil
}

func (c Config) lsmrSettings() lsmr.Settings {
	return lsmr.Settings{
		ATol:          c.ATol,
		BTol:          c.BTol,
		ConLim:        c.ConLim,
		MaxIterations: c.MaxIterations,
	}
}

// NewLogger builds a console logger at the given level
func NewLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
