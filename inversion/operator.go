package inversion

import (
	"math"

	"github.com/notargets/slipinv/obsmap"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ForwardSolver is the boundary solve collaborator. Forward maps slip to a
// full solution vector, Adjoint is its exact transpose. Both must be pure
// functions of their argument.
type ForwardSolver interface {
	Forward(slip []float64) ([]float64, error)
	Adjoint(rhs []float64) ([]float64, error)
	NSlip() int
	NDofs() int
}

// Operator is the matrix-free regularized forward operator
//
//	A = [ M·F ]
//	    [ λ·I ]
//
// of shape (nObs+nSlip, nSlip), where F is the forward solve and M the
// observation map. It holds no per-call state and is safe to apply
// repeatedly and concurrently if the solver is.
type Operator struct {
	solver ForwardSolver
	obs    *obsmap.Map
	reg    float64

	nObs, nSlip, nDofs int
}

func NewOperator(solver ForwardSolver, obs *obsmap.Map, reg float64) (*Operator, error) {
	if math.IsNaN(reg) || reg < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "regularization %g must be non-negative", reg)
	}
	nObs, nCols := obs.Dims()
	if nCols != solver.NDofs() {
		return nil, errors.Wrapf(ErrShape, "observation map has %d columns, solver has %d dofs",
			nCols, solver.NDofs())
	}
	return &Operator{
		solver: solver,
		obs:    obs,
		reg:    reg,
		nObs:   nObs,
		nSlip:  solver.NSlip(),
		nDofs:  nCols,
	}, nil
}

// Dims returns (nObs+nSlip, nSlip). The regularization rows are kept even
// when λ is zero.
func (op *Operator) Dims() (m, n int) { return op.nObs + op.nSlip, op.nSlip }

func (op *Operator) NObs() int { return op.nObs }

func (op *Operator) RegParam() float64 { return op.reg }

// Apply writes [M·F(slip), λ·slip] into dst
func (op *Operator) Apply(dst, slip []float64) error {
	if len(slip) != op.nSlip || len(dst) != op.nObs+op.nSlip {
		return errors.Wrapf(ErrShape, "apply: slip %d (want %d), dst %d (want %d)",
			len(slip), op.nSlip, len(dst), op.nObs+op.nSlip)
	}
	soln, err := op.solver.Forward(slip)
	if err != nil {
		return errors.Wrap(err, "forward")
	}
	if err = op.obs.Apply(dst[:op.nObs], soln); err != nil {
		return err
	}
	floats.ScaleTo(dst[op.nObs:], op.reg, slip)
	return nil
}

// ApplyTranspose writes F*(Mᵀ·r_obs) + λ·r_reg into dst
func (op *Operator) ApplyTranspose(dst, r []float64) error {
	if len(r) != op.nObs+op.nSlip || len(dst) != op.nSlip {
		return errors.Wrapf(ErrShape, "apply transpose: r %d (want %d), dst %d (want %d)",
			len(r), op.nObs+op.nSlip, len(dst), op.nSlip)
	}
	rhs := make([]float64, op.nDofs)
	if err := op.obs.ApplyTranspose(rhs, r[:op.nObs]); err != nil {
		return err
	}
	g, err := op.solver.Adjoint(rhs)
	if err != nil {
		return errors.Wrap(err, "adjoint")
	}
	if len(g) != op.nSlip {
		return errors.Wrapf(ErrShape, "adjoint returned %d values, want %d", len(g), op.nSlip)
	}
	floats.AddScaledTo(dst, g, op.reg, r[op.nObs:])
	return nil
}
