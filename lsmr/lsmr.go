// Package lsmr solves sparse or implicit least-squares problems
//
//	min ‖A x - b‖² + damp² ‖x‖²
//
// with the LSMR algorithm of Fong and Saunders (2011). Only products with A
// and Aᵀ are required. Both ‖r_k‖ and ‖Aᵀ r_k‖ decrease monotonically.
package lsmr

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrDimension = errors.New("dimension mismatch")
	ErrSettings  = errors.New("invalid settings")
)

// StopReason explains why Solve returned
type StopReason int

const (
	ExactZero         StopReason = iota // x = 0 solves the problem exactly
	Compatible                          // ‖r‖ within BTol·‖b‖ + ATol·‖A‖·‖x‖
	LeastSquares                        // ‖Aᵀr‖ within ATol·‖A‖·‖r‖
	ConditionLimit                      // cond(A) estimate exceeded ConLim
	CompatibleEps                       // as Compatible, at machine precision
	LeastSquaresEps                     // as LeastSquares, at machine precision
	ConditionLimitEps                   // cond(A) estimate exceeded 1/eps
	IterationLimit                      // MaxIterations reached
)

var stopReasonNames = [...]string{
	"x=0 is the exact solution",
	"Ax-b is small enough given atol, btol",
	"least-squares solution is good enough given atol",
	"estimated cond(A) exceeds conlim",
	"Ax-b is small enough for this machine",
	"least-squares solution is good enough for this machine",
	"cond(A) seems to be too large for this machine",
	"iteration limit reached",
}

func (r StopReason) String() string {
	if r < 0 || int(r) >= len(stopReasonNames) {
		return "unknown"
	}
	return stopReasonNames[r]
}

// Converged is false when the solve stopped on a limit rather than a
// tolerance
func (r StopReason) Converged() bool {
	switch r {
	case ConditionLimit, ConditionLimitEps, IterationLimit:
		return false
	}
	return true
}

// Settings configures a solve. The zero value of a tolerance disables the
// corresponding test (machine precision still applies).
type Settings struct {
	ATol, BTol float64
	ConLim     float64 // ≤ 0 disables the condition test
	Damp       float64
	// MaxIterations ≤ 0 means min(m, n)
	MaxIterations int
	// Observer, when set, is called after every iteration
	Observer func(Progress)
}

// DefaultSettings mirrors the customary LSMR defaults
func DefaultSettings() Settings {
	return Settings{
		ATol:   1.e-6,
		BTol:   1.e-6,
		ConLim: 1.e8,
	}
}

// Validate reports malformed tolerances
func (s Settings) Validate() error {
	if s.ATol < 0 || s.BTol < 0 || math.IsNaN(s.ATol) || math.IsNaN(s.BTol) {
		return errors.Wrapf(ErrSettings, "tolerances atol=%g btol=%g", s.ATol, s.BTol)
	}
	if math.IsNaN(s.ConLim) || math.IsNaN(s.Damp) || s.Damp < 0 {
		return errors.Wrapf(ErrSettings, "conlim=%g damp=%g", s.ConLim, s.Damp)
	}
	return nil
}

// Progress is reported to Settings.Observer each iteration
type Progress struct {
	Iteration int
	X         []float64 // Current iterate, owned by the solver
	NormR     float64
	NormAR    float64
	NormA     float64
	CondA     float64
	NormX     float64
}

// Result of a solve
type Result struct {
	X          []float64
	Reason     StopReason
	Iterations int
	NormR      float64 // ‖b - A x‖ (with damping: of the augmented system)
	NormAR     float64 // ‖Aᵀ r - damp² x‖
	NormA      float64 // Frobenius norm estimate of [A; damp·I]
	CondA      float64
	NormX      float64
}

func symOrtho(a, b float64) (c, s, r float64) {
	switch {
	case b == 0:
		return sign(a), 0, math.Abs(a)
	case a == 0:
		return 0, sign(b), math.Abs(b)
	case math.Abs(b) > math.Abs(a):
		tau := a / b
		s = sign(b) / math.Sqrt(1+tau*tau)
		c = s * tau
		r = b / s
	default:
		tau := b / a
		c = sign(a) / math.Sqrt(1+tau*tau)
		s = c * tau
		r = a / c
	}
	return
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Solve runs LSMR from x = 0. Errors from the operator are returned as is;
// failing to meet the tolerances is reported through Result.Reason.
func Solve(A Operator, b []float64, settings Settings) (*Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	m, n := A.Dims()
	if len(b) != m {
		return nil, errors.Wrapf(ErrDimension, "rhs length %d, operator has %d rows", len(b), m)
	}
	maxIter := settings.MaxIterations
	if maxIter <= 0 {
		maxIter = min(m, n)
	}
	atol, btol, damp := settings.ATol, settings.BTol, settings.Damp
	var ctol float64
	if settings.ConLim > 0 {
		ctol = 1 / settings.ConLim
	}

	u := make([]float64, m)
	copy(u, b)
	normb := floats.Norm(b, 2)
	x := make([]float64, n)
	v := make([]float64, n)
	beta := normb
	var alpha float64

	if beta > 0 {
		floats.Scale(1/beta, u)
		if err := A.ApplyTranspose(v, u); err != nil {
			return nil, err
		}
		alpha = floats.Norm(v, 2)
	}
	if alpha > 0 {
		floats.Scale(1/alpha, v)
	}

	res := &Result{X: x, NormR: beta, NormAR: alpha * beta, CondA: 1}
	if res.NormAR == 0 {
		res.Reason = ExactZero
		return res, nil
	}

	var (
		zetabar  = alpha * beta
		alphabar = alpha
		rho      = 1.0
		rhobar   = 1.0
		cbar     = 1.0
		sbar     = 0.0

		h    = append([]float64(nil), v...)
		hbar = make([]float64, n)

		// ‖r‖ estimation
		betadd      = beta
		betad       = 0.0
		rhodold     = 1.0
		tautildeold = 0.0
		thetatilde  = 0.0
		zeta        = 0.0
		d           = 0.0

		// ‖A‖ and cond(A) estimation
		normA2  = alpha * alpha
		maxrbar = 0.0
		minrbar = 1.e100

		av = make([]float64, m)
		at = make([]float64, n)
	)

	for itn := 1; itn <= maxIter; itn++ {
		// Golub-Kahan bidiagonalization step
		if err := A.Apply(av, v); err != nil {
			return nil, err
		}
		floats.AddScaledTo(u, av, -alpha, u)
		beta = floats.Norm(u, 2)
		if beta > 0 {
			floats.Scale(1/beta, u)
			if err := A.ApplyTranspose(at, u); err != nil {
				return nil, err
			}
			floats.AddScaledTo(v, at, -beta, v)
			alpha = floats.Norm(v, 2)
			if alpha > 0 {
				floats.Scale(1/alpha, v)
			}
		}

		// Qhat_{k,2k+1} folds in damping
		chat, shat, alphahat := symOrtho(alphabar, damp)

		// Q_i turns B_i into R_i
		rhoold := rho
		c, s, rhoNew := symOrtho(alphahat, beta)
		rho = rhoNew
		thetanew := s * alpha
		alphabar = c * alpha

		// Qbar_i turns R_iᵀ into Rbar_i
		rhobarold := rhobar
		zetaold := zeta
		thetabar := sbar * rho
		rhotemp := cbar * rho
		cbar, sbar, rhobar = symOrtho(cbar*rho, thetanew)
		zeta = cbar * zetabar
		zetabar = -sbar * zetabar

		// Update h, hbar, x
		floats.Scale(-thetabar*rho/(rhoold*rhobarold), hbar)
		floats.Add(hbar, h)
		floats.AddScaled(x, zeta/(rho*rhobar), hbar)
		floats.Scale(-thetanew/rho, h)
		floats.Add(h, v)

		// ‖r‖ estimate: apply Qhat_{k,2k+1}, Q_{k,k+1}, Qtilde_{k-1}
		betaacute := chat * betadd
		betacheck := -shat * betadd
		betahat := c * betaacute
		betadd = -s * betaacute

		thetatildeold := thetatilde
		ctildeold, stildeold, rhotildeold := symOrtho(rhodold, thetabar)
		thetatilde = stildeold * rhobar
		rhodold = ctildeold * rhobar
		betad = -stildeold*betad + ctildeold*betahat

		tautildeold = (zetaold - thetatildeold*tautildeold) / rhotildeold
		taud := (zeta - thetatilde*tautildeold) / rhodold
		d += betacheck * betacheck
		normr := math.Sqrt(d + (betad-taud)*(betad-taud) + betadd*betadd)

		// ‖A‖ estimate
		normA2 += beta * beta
		normA := math.Sqrt(normA2)
		normA2 += alpha * alpha

		// cond(A) estimate
		maxrbar = math.Max(maxrbar, rhobarold)
		if itn > 1 {
			minrbar = math.Min(minrbar, rhobarold)
		}
		condA := math.Max(maxrbar, rhotemp) / math.Min(minrbar, rhotemp)

		normar := math.Abs(zetabar)
		normx := floats.Norm(x, 2)

		res.Iterations = itn
		res.NormR, res.NormAR, res.NormA, res.CondA, res.NormX = normr, normar, normA, condA, normx
		if settings.Observer != nil {
			settings.Observer(Progress{
				Iteration: itn, X: x,
				NormR: normr, NormAR: normar, NormA: normA, CondA: condA, NormX: normx,
			})
		}

		test1 := normr / normb
		test2 := math.Inf(1)
		if normA*normr != 0 {
			test2 = normar / (normA * normr)
		}
		test3 := 1 / condA
		t1 := test1 / (1 + normA*normx/normb)
		rtol := btol + atol*normA*normx/normb

		// Later tests take precedence
		stop := -1
		if itn >= maxIter {
			stop = int(IterationLimit)
		}
		if 1+test3 <= 1 {
			stop = int(ConditionLimitEps)
		}
		if 1+test2 <= 1 {
			stop = int(LeastSquaresEps)
		}
		if 1+t1 <= 1 {
			stop = int(CompatibleEps)
		}
		if test3 <= ctol {
			stop = int(ConditionLimit)
		}
		if test2 <= atol {
			stop = int(LeastSquares)
		}
		if test1 <= rtol {
			stop = int(Compatible)
		}
		if stop >= 0 {
			res.Reason = StopReason(stop)
			return res, nil
		}
	}
	// maxIter < 1 never enters the loop
	res.Reason = IterationLimit
	return res, nil
}
