package inversion

import (
	"time"

	"github.com/notargets/slipinv/lsmr"
	"github.com/notargets/slipinv/obsmap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// PenaltySystem exposes the surface forward relation LHS·u = RHS·s in block
// form. The solution vector is laid out as the surface DOFs followed by the
// fault DOFs.
type PenaltySystem interface {
	NDofs() int
	NSurf() int
	NSlip() int
	SurfaceDofs() (start, end int)
	FaultDofs() (start, end int)
	MulLHS(dst, x []float64, trans bool) error
	MulRHS(dst, x []float64, trans bool) error
}

// PenaltyOperator treats surface displacement and slip as independent
// unknowns coupled by a weighted penalty on the forward relation:
//
//	[ M               ]   [ u ]
//	[ W·LHS   −W·RHS  ] · [ s ]
//	[ 0        λ·I    ]
type PenaltyOperator struct {
	sys         PenaltySystem
	obs         *obsmap.Map
	weight, reg float64

	nObs, nSurf, nSlip, nDofs int
	surf0, surf1              int
	fault0, fault1            int
}

func NewPenaltyOperator(sys PenaltySystem, obs *obsmap.Map, weight, reg float64) (*PenaltyOperator, error) {
	nObs, nCols := obs.Dims()
	if nCols != sys.NDofs() {
		return nil, errors.Wrapf(ErrShape, "observation map has %d columns, system has %d dofs", nCols, sys.NDofs())
	}
	if sys.NSurf()+sys.NSlip() != sys.NDofs() {
		return nil, errors.Wrapf(ErrShape, "surface %d + fault %d dofs do not cover %d",
			sys.NSurf(), sys.NSlip(), sys.NDofs())
	}
	op := &PenaltyOperator{
		sys:    sys,
		obs:    obs,
		weight: weight,
		reg:    reg,
		nObs:   nObs,
		nSurf:  sys.NSurf(),
		nSlip:  sys.NSlip(),
		nDofs:  nCols,
	}
	op.surf0, op.surf1 = sys.SurfaceDofs()
	op.fault0, op.fault1 = sys.FaultDofs()
	return op, nil
}

func (op *PenaltyOperator) Dims() (m, n int) { return op.nObs + op.nSurf + op.nSlip, op.nDofs }

func (op *PenaltyOperator) Weight() float64 { return op.weight }

func (op *PenaltyOperator) Apply(dst, x []float64) error {
	m, n := op.Dims()
	if len(x) != n || len(dst) != m {
		return errors.Wrapf(ErrShape, "penalty apply: x %d (want %d), dst %d (want %d)", len(x), n, len(dst), m)
	}
	if err := op.obs.Apply(dst[:op.nObs], x); err != nil {
		return err
	}
	pen := dst[op.nObs : op.nObs+op.nSurf]
	if err := op.sys.MulLHS(pen, x[op.surf0:op.surf1], false); err != nil {
		return err
	}
	f := make([]float64, op.nSurf)
	if err := op.sys.MulRHS(f, x[op.fault0:op.fault1], false); err != nil {
		return err
	}
	floats.Sub(pen, f)
	floats.Scale(op.weight, pen)
	floats.ScaleTo(dst[op.nObs+op.nSurf:], op.reg, x[op.fault0:op.fault1])
	return nil
}

func (op *PenaltyOperator) ApplyTranspose(dst, r []float64) error {
	m, n := op.Dims()
	if len(r) != m || len(dst) != n {
		return errors.Wrapf(ErrShape, "penalty apply transpose: r %d (want %d), dst %d (want %d)", len(r), m, len(dst), n)
	}
	if err := op.obs.ApplyTranspose(dst, r[:op.nObs]); err != nil {
		return err
	}
	w := r[op.nObs : op.nObs+op.nSurf]
	yu := make([]float64, op.nSurf)
	if err := op.sys.MulLHS(yu, w, true); err != nil {
		return err
	}
	floats.AddScaled(dst[op.surf0:op.surf1], op.weight, yu)
	ys := make([]float64, op.nSlip)
	if err := op.sys.MulRHS(ys, w, true); err != nil {
		return err
	}
	fault := dst[op.fault0:op.fault1]
	floats.AddScaled(fault, -op.weight, ys)
	floats.AddScaled(fault, op.reg, r[op.nObs+op.nSurf:])
	return nil
}

// residual returns ‖b − A·x‖
func residual(op lsmr.Operator, b, x []float64) (float64, error) {
	ax := make([]float64, len(b))
	if err := op.Apply(ax, x); err != nil {
		return 0, err
	}
	floats.SubTo(ax, b, ax)
	return floats.Norm(ax, 2), nil
}

// PenaltyState is carried across continuation stages
type PenaltyState struct {
	Stage  int
	X      []float64 // Surface and fault DOFs
	Weight float64
	Tol    float64
}

// StageReport summarises one continuation stage. Residuals are ‖b − A(W)·x‖
// for the stage's weight, before and after its increment.
type StageReport struct {
	Stage          int
	Weight         float64
	Tol            float64
	Iterations     int
	Reason         lsmr.StopReason
	Converged      bool
	ResidualBefore float64
	ResidualAfter  float64
}

type PenaltyResult struct {
	Slip   []float64
	X      []float64
	Stages []StageReport
}

// PenaltyDriver runs the penalty continuation: each stage raises the penalty
// weight, tightens the tolerance and solves for an increment from the
// previous stage's estimate.
type PenaltyDriver struct {
	sys      PenaltySystem
	obs      *obsmap.Map
	cfg      Config
	log      *zap.Logger
	observer func(StageReport)
}

func NewPenaltyDriver(sys PenaltySystem, obs *obsmap.Map, cfg Config, log *zap.Logger) (*PenaltyDriver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, nCols := obs.Dims(); nCols != sys.NDofs() {
		return nil, errors.Wrapf(ErrShape, "observation map has %d columns, system has %d dofs", nCols, sys.NDofs())
	}
	return &PenaltyDriver{sys: sys, obs: obs, cfg: cfg, log: log}, nil
}

// WithObserver registers fn to receive every stage report
func (d *PenaltyDriver) WithObserver(fn func(StageReport)) *PenaltyDriver {
	d.observer = fn
	return d
}

// Run executes all stages. A stage whose solve stops on a limit is still
// accepted; it is flagged in its report and logged.
func (d *PenaltyDriver) Run(bObs []float64) (*PenaltyResult, error) {
	nObs, _ := d.obs.Dims()
	if len(bObs) != nObs {
		return nil, errors.Wrapf(ErrShape, "%d observations, map has %d rows", len(bObs), nObs)
	}
	p := d.cfg.Penalty
	state := PenaltyState{
		X:      make([]float64, d.sys.NDofs()),
		Weight: p.InitialWeight,
		Tol:    p.InitialTol,
	}
	b := make([]float64, nObs+d.sys.NSurf()+d.sys.NSlip())
	copy(b, bObs)

	result := &PenaltyResult{}
	for s := 0; s < p.Stages; s++ {
		state.Stage = s
		state.Weight *= p.WeightGrowth
		state.Tol /= p.TolDecay
		rep, err := d.stage(&state, b)
		if err != nil {
			return nil, errors.Wrapf(err, "penalty stage %d", s)
		}
		result.Stages = append(result.Stages, rep)
		if d.observer != nil {
			d.observer(rep)
		}
	}
	fs, fe := d.sys.FaultDofs()
	result.X = state.X
	result.Slip = append([]float64(nil), state.X[fs:fe]...)
	return result, nil
}

func (d *PenaltyDriver) stage(state *PenaltyState, b []float64) (StageReport, error) {
	op, err := NewPenaltyOperator(d.sys, d.obs, state.Weight, d.cfg.RegParam)
	if err != nil {
		return StageReport{}, err
	}
	b2 := make([]float64, len(b))
	if err = op.Apply(b2, state.X); err != nil {
		return StageReport{}, err
	}
	floats.SubTo(b2, b, b2)
	before := floats.Norm(b2, 2)

	start := time.Now()
	res, err := lsmr.Solve(op, b2, lsmr.Settings{
		ATol:          state.Tol,
		BTol:          state.Tol,
		ConLim:        d.cfg.ConLim,
		MaxIterations: d.cfg.Penalty.MaxIterations,
		Observer:      progressLogger(d.log),
	})
	if err != nil {
		return StageReport{}, err
	}
	floats.Add(state.X, res.X)

	after, err := residual(op, b, state.X)
	if err != nil {
		return StageReport{}, err
	}
	rep := StageReport{
		Stage:          state.Stage,
		Weight:         state.Weight,
		Tol:            state.Tol,
		Iterations:     res.Iterations,
		Reason:         res.Reason,
		Converged:      res.Reason.Converged(),
		ResidualBefore: before,
		ResidualAfter:  after,
	}
	fields := []zap.Field{
		zap.Int("stage", rep.Stage),
		zap.Float64("weight", rep.Weight),
		zap.Float64("tol", rep.Tol),
		zap.Int("iterations", rep.Iterations),
		zap.Stringer("reason", rep.Reason),
		zap.Float64("residual_before", before),
		zap.Float64("residual_after", after),
		zap.Duration("elapsed", time.Since(start)),
	}
	if rep.Converged {
		d.log.Info("penalty stage", fields...)
	} else {
		d.log.Warn("penalty stage accepted without converging", fields...)
	}
	return rep, nil
}
