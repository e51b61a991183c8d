package inversion

import (
	"time"

	"github.com/notargets/slipinv/lsmr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Result of a regularized inversion
type Result struct {
	Slip       []float64
	Iterations int
	Reason     lsmr.StopReason
	Converged  bool
	NormR      float64
	NormAR     float64
	NormA      float64
	CondA      float64
	NormX      float64
}

// Invert solves min ‖A·slip − [bObs, 0]‖ with LSMR. Hitting the iteration
// or condition limit is reported in the result and logged, not returned as
// an error; failures of the forward or adjoint solves are.
func Invert(op *Operator, bObs []float64, cfg Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bObs) != op.NObs() {
		return nil, errors.Wrapf(ErrShape, "%d observations, operator expects %d", len(bObs), op.NObs())
	}
	m, n := op.Dims()
	b := make([]float64, m)
	copy(b, bObs)

	settings := cfg.lsmrSettings()
	settings.Observer = progressLogger(log)

	start := time.Now()
	res, err := lsmr.Solve(op, b, settings)
	if err != nil {
		return nil, errors.Wrap(err, "lsmr")
	}
	out := &Result{
		Slip:       res.X,
		Iterations: res.Iterations,
		Reason:     res.Reason,
		Converged:  res.Reason.Converged(),
		NormR:      res.NormR,
		NormAR:     res.NormAR,
		NormA:      res.NormA,
		CondA:      res.CondA,
		NormX:      res.NormX,
	}
	fields := []zap.Field{
		zap.Int("rows", m),
		zap.Int("cols", n),
		zap.Float64("reg_param", op.RegParam()),
		zap.Int("iterations", res.Iterations),
		zap.Stringer("reason", res.Reason),
		zap.Float64("norm_r", res.NormR),
		zap.Float64("norm_ar", res.NormAR),
		zap.Duration("elapsed", time.Since(start)),
	}
	if out.Converged {
		log.Info("inversion finished", fields...)
	} else {
		log.Warn("inversion stopped before converging", fields...)
	}
	return out, nil
}

func progressLogger(log *zap.Logger) func(lsmr.Progress) {
	return func(p lsmr.Progress) {
		if ce := log.Check(zap.DebugLevel, "lsmr iteration"); ce != nil {
			ce.Write(
				zap.Int("iteration", p.Iteration),
				zap.Float64("norm_r", p.NormR),
				zap.Float64("norm_ar", p.NormAR),
				zap.Float64("cond_a", p.CondA),
				zap.Float64("norm_x", p.NormX),
			)
		}
	}
}
