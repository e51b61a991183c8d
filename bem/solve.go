package bem

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forward returns the full solution vector produced by fault slip: the
// surface displacement LHS⁻¹·RHS·slip on the surface DOFs and the slip
// itself on the fault DOFs.
func (s *System) Forward(slip []float64) ([]float64, error) {
	nSurf, nSlip := s.NSurf(), s.NSlip()
	if len(slip) != nSlip {
		return nil, errors.Wrapf(ErrDimension, "forward: slip length %d != %d", len(slip), nSlip)
	}
	f := make([]float64, nSurf)
	mat.NewVecDense(nSurf, f).MulVec(s.rhs, mat.NewVecDense(nSlip, slip))

	u := make([]float64, nSurf)
	if err := s.solve(u, f, false); err != nil {
		return nil, errors.Wrap(err, "forward solve")
	}
	soln := make([]float64, s.NDofs())
	copy(soln[s.surf.DofStart():s.surf.DofEnd()], u)
	copy(soln[s.fault.DofStart():s.fault.DofEnd()], slip)
	return soln, nil
}

// Adjoint applies the transpose of Forward to a full-length vector:
// RHSᵀ·LHS⁻ᵀ·rhs_surf + rhs_fault
func (s *System) Adjoint(rhs []float64) ([]float64, error) {
	nSurf, nSlip := s.NSurf(), s.NSlip()
	if len(rhs) != s.NDofs() {
		return nil, errors.Wrapf(ErrDimension, "adjoint: rhs length %d != %d", len(rhs), s.NDofs())
	}
	y := make([]float64, nSurf)
	if err := s.solve(y, rhs[s.surf.DofStart():s.surf.DofEnd()], true); err != nil {
		return nil, errors.Wrap(err, "adjoint solve")
	}
	g := make([]float64, nSlip)
	mat.NewVecDense(nSlip, g).MulVec(s.rhs.T(), mat.NewVecDense(nSurf, y))
	floats.Add(g, rhs[s.fault.DofStart():s.fault.DofEnd()])
	return g, nil
}

// MulLHS computes dst = LHS·x, or LHSᵀ·x when trans. dst must not alias x.
func (s *System) MulLHS(dst, x []float64, trans bool) error {
	n := s.NSurf()
	if len(dst) != n || len(x) != n {
		return errors.Wrapf(ErrDimension, "lhs %dx%d: dst %d, x %d", n, n, len(dst), len(x))
	}
	var a mat.Matrix = s.lhs
	if trans {
		a = s.lhs.T()
	}
	mat.NewVecDense(n, dst).MulVec(a, mat.NewVecDense(n, x))
	return nil
}

// MulRHS computes dst = RHS·x, or RHSᵀ·x when trans. dst must not alias x.
func (s *System) MulRHS(dst, x []float64, trans bool) error {
	r, c := s.rhs.Dims()
	var a mat.Matrix = s.rhs
	if trans {
		r, c = c, r
		a = s.rhs.T()
	}
	if len(dst) != r || len(x) != c {
		return errors.Wrapf(ErrDimension, "rhs %dx%d: dst %d, x %d", r, c, len(dst), len(x))
	}
	mat.NewVecDense(r, dst).MulVec(a, mat.NewVecDense(c, x))
	return nil
}

// solve writes LHS⁻¹·b (LHS⁻ᵀ·b when trans) into dst
func (s *System) solve(dst, b []float64, trans bool) error {
	if s.cfg.Preconditioner == PreconILU {
		n := len(b)
		if err := s.lu.SolveVecTo(mat.NewVecDense(n, dst), trans, mat.NewVecDense(n, b)); err != nil {
			return errors.Wrap(ErrNotConverged, err.Error())
		}
		return nil
	}
	return s.richardson(dst, b, trans)
}

// richardson iterates x += D⁻¹(b - A x). The surface block is scaled to
// 1- and ∞-norm below one, so the iteration contracts for A and Aᵀ.
func (s *System) richardson(dst, b []float64, trans bool) error {
	n := len(b)
	for i := range dst {
		dst[i] = 0
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return nil
	}
	var a mat.Matrix = s.lhs
	if trans {
		a = s.lhs.T()
	}
	r := make([]float64, n)
	xv, rv := mat.NewVecDense(n, dst), mat.NewVecDense(n, r)
	var rnorm float64
	for it := 0; it < s.cfg.MaxIterations; it++ {
		rv.MulVec(a, xv)
		floats.SubTo(r, b, r)
		rnorm = floats.Norm(r, 2)
		if rnorm <= s.cfg.Tolerance*bnorm {
			if ce := s.log.Check(zap.DebugLevel, "inner solve converged"); ce != nil {
				ce.Write(zap.Int("iterations", it), zap.Float64("residual", rnorm/bnorm),
					zap.Bool("transpose", trans))
			}
			return nil
		}
		for i := range dst {
			dst[i] += r[i] / s.diag[i]
		}
	}
	return errors.Wrapf(ErrNotConverged, "%s iteration: relative residual %g after %d iterations",
		s.cfg.Preconditioner, rnorm/bnorm, s.cfg.MaxIterations)
}
