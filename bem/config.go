package bem

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Preconditioner selects how the surface system LHS·u = f is solved
type Preconditioner int

const (
	// PreconILU factors the LHS once at assembly. The LHS is dense, so the
	// incomplete factorization is the complete one and solves are direct.
	PreconILU Preconditioner = iota
	// PreconJacobi runs a diagonally preconditioned Richardson iteration
	PreconJacobi
	// PreconNone runs a plain Richardson iteration
	PreconNone
)

func (p Preconditioner) String() string {
	switch p {
	case PreconILU:
		return "ilu"
	case PreconJacobi:
		return "jacobi"
	case PreconNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParsePreconditioner accepts "ilu", "jacobi" or "none"
func ParsePreconditioner(s string) (Preconditioner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ilu", "lu":
		return PreconILU, nil
	case "jacobi":
		return PreconJacobi, nil
	case "none", "":
		return PreconNone, nil
	}
	return 0, errors.Wrapf(ErrInvalidConfig, "unknown preconditioner %q", s)
}

// Config bundles material constants and numerical parameters of the
// boundary system. It is passed by value and never modified after Assemble.
type Config struct {
	ShearModulus float64
	PoissonRatio float64

	FarfieldOrder      int     // Triangle quadrature points per direction, far field
	NearfieldOrder     int     // Triangle quadrature points per direction, near field
	NearfieldThreshold float64 // Near field when distance < threshold * triangle diameter
	CoreRadius         float64 // Kelvin kernel regularization length

	// SurfaceCoupling is the 1- and ∞-norm bound of the surface
	// self-interaction block; must be < 1 so the LHS is diagonally dominant
	SurfaceCoupling float64

	Preconditioner Preconditioner
	Tolerance      float64 // Relative residual of iterative inner solves
	MaxIterations  int     // Iteration cap of iterative inner solves

	Workers int // Assembly goroutines
}

func DefaultConfig() Config {
	return Config{
		ShearModulus:       1.0,
		PoissonRatio:       0.25,
		FarfieldOrder:      3,
		NearfieldOrder:     6,
		NearfieldThreshold: 2.0,
		CoreRadius:         1.e-3,
		SurfaceCoupling:    0.5,
		Preconditioner:     PreconILU,
		Tolerance:          1.e-13,
		MaxIterations:      500,
		Workers:            runtime.NumCPU(),
	}
}

// Validate checks physical and numerical ranges
func (c Config) Validate() error {
	switch {
	case !(c.ShearModulus > 0):
		return errors.Wrapf(ErrInvalidConfig, "shear modulus %g must be positive", c.ShearModulus)
	case !(c.PoissonRatio > -1 && c.PoissonRatio < 0.5):
		return errors.Wrapf(ErrInvalidConfig, "poisson ratio %g outside (-1, 0.5)", c.PoissonRatio)
	case c.FarfieldOrder < 1 || c.NearfieldOrder < 1:
		return errors.Wrapf(ErrInvalidConfig, "quadrature orders %d/%d must be >= 1",
			c.FarfieldOrder, c.NearfieldOrder)
	case c.NearfieldThreshold < 0:
		return errors.Wrapf(ErrInvalidConfig, "nearfield threshold %g negative", c.NearfieldThreshold)
	case !(c.CoreRadius > 0):
		return errors.Wrapf(ErrInvalidConfig, "core radius %g must be positive", c.CoreRadius)
	case !(c.SurfaceCoupling >= 0 && c.SurfaceCoupling < 1):
		return errors.Wrapf(ErrInvalidConfig, "surface coupling %g outside [0, 1)", c.SurfaceCoupling)
	case c.Preconditioner < PreconILU || c.Preconditioner > PreconNone:
		return errors.Wrapf(ErrInvalidConfig, "preconditioner %d", int(c.Preconditioner))
	case c.Preconditioner != PreconILU && !(c.Tolerance > 0):
		return errors.Wrapf(ErrInvalidConfig, "tolerance %g must be positive", c.Tolerance)
	case c.Preconditioner != PreconILU && c.MaxIterations < 1:
		return errors.Wrapf(ErrInvalidConfig, "max iterations %d must be >= 1", c.MaxIterations)
	case c.Workers < 0:
		return errors.Wrapf(ErrInvalidConfig, "workers %d negative", c.Workers)
	}
	return nil
}
