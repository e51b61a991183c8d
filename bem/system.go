// Package bem is the boundary-integral collaborator of the inversion: it
// assembles the surface/fault interaction operators of a combined mesh once
// and exposes pure forward and adjoint solves over them.
package bem

import (
	"context"
	"math"
	"time"

	"github.com/notargets/slipinv/mesh"
	"github.com/notargets/slipinv/partitions"
	"github.com/notargets/slipinv/quadrature"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidConfig      = errors.New("invalid boundary system config")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrNotConverged       = errors.New("inner solve did not converge")
	ErrDimension          = errors.New("dimension mismatch")
)

// System is an assembled boundary-integral system for a fixed geometry and
// material. The surface displacement u produced by fault slip s satisfies
//
//	LHS · u = RHS · s
//
// where LHS (nSurf×nSurf) is the identity plus the surface self-interaction
// and RHS (nSurf×nSlip) is the fault-to-surface interaction. A System is
// immutable after Assemble and safe for concurrent use.
type System struct {
	cfg         Config
	mesh        *mesh.CombinedMesh
	surf, fault mesh.PieceRange

	lhs  *mat.Dense
	rhs  *mat.Dense
	lu   *mat.LU
	diag []float64

	log *zap.Logger
}

type assembler struct {
	m           *mesh.CombinedMesh
	surf, fault mesh.PieceRange
	near, far   *quadrature.Rule
	threshold   float64
	k           kelvin
	kss, ksf    *mat.Dense
}

// Assemble builds the boundary system for the "surf" and "fault" pieces of m
func Assemble(ctx context.Context, m *mesh.CombinedMesh, cfg Config, log *zap.Logger) (*System, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	surf, err := m.Range(mesh.Surf)
	if err != nil {
		return nil, errors.Wrap(ErrDegenerateGeometry, err.Error())
	}
	fault, err := m.Range(mesh.Fault)
	if err != nil {
		return nil, errors.Wrap(ErrDegenerateGeometry, err.Error())
	}
	if surf.NTris() == 0 || fault.NTris() == 0 {
		return nil, errors.Wrapf(ErrDegenerateGeometry, "empty piece: %d surface, %d fault triangles",
			surf.NTris(), fault.NTris())
	}
	for k := range m.Tris {
		h := m.Diameter(k)
		if !(m.TriArea(k) > 1.e-12*h*h) {
			return nil, errors.Wrapf(ErrDegenerateGeometry, "triangle %d has zero area", k)
		}
	}

	start := time.Now()
	near, err := quadrature.Triangle(cfg.NearfieldOrder)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	far, err := quadrature.Triangle(cfg.FarfieldOrder)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	a := &assembler{
		m:         m,
		surf:      surf,
		fault:     fault,
		near:      near,
		far:       far,
		threshold: cfg.NearfieldThreshold,
		k:         newKelvin(cfg.ShearModulus, cfg.PoissonRatio, cfg.CoreRadius),
		kss:       mat.NewDense(surf.NDofs(), surf.NDofs(), nil),
		ksf:       mat.NewDense(surf.NDofs(), fault.NDofs(), nil),
	}

	// One work item per surface triangle corner; each fills three rows
	layout, err := partitions.ForWorkers(surf.NTris()*mesh.CornersPerTri, cfg.Workers).BuildPartitions()
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, part := range layout.Partitions {
		g.Go(func() error {
			for _, it := range part.Items {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := a.assembleRows(it); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &System{
		cfg:   cfg,
		mesh:  m,
		surf:  surf,
		fault: fault,
		rhs:   a.ksf,
		log:   log,
	}
	s.lhs = a.kss
	if scale := math.Max(mat.Norm(s.lhs, 1), mat.Norm(s.lhs, math.Inf(1))); scale > 0 {
		s.lhs.Scale(cfg.SurfaceCoupling/scale, s.lhs)
	}
	n := surf.NDofs()
	for i := 0; i < n; i++ {
		s.lhs.Set(i, i, s.lhs.At(i, i)+1)
	}

	switch cfg.Preconditioner {
	case PreconILU:
		s.lu = &mat.LU{}
		s.lu.Factorize(s.lhs)
		if c := s.lu.Cond(); math.IsInf(c, 1) || c > 1/(1.e2*floatEps) {
			return nil, errors.Wrapf(ErrDegenerateGeometry, "surface system condition number %g", c)
		}
	case PreconJacobi:
		s.diag = make([]float64, n)
		for i := range s.diag {
			s.diag[i] = s.lhs.At(i, i)
		}
	case PreconNone:
		s.diag = make([]float64, n)
		floats.AddConst(1, s.diag)
	}

	log.Info("assembled boundary system",
		zap.Int("surf_dofs", surf.NDofs()),
		zap.Int("fault_dofs", fault.NDofs()),
		zap.Int("partitions", layout.NumPartitions),
		zap.Stringer("preconditioner", cfg.Preconditioner),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

const floatEps = 2.220446049250313e-16

// assembleRows integrates every source triangle against the observation
// point at surface corner item, filling rows 3*item .. 3*item+2
func (a *assembler) assembleRows(item int) error {
	tri := a.surf.TriStart + item/mesh.CornersPerTri
	x := a.m.Pts[a.m.Tris[tri][item%mesh.CornersPerTri]]
	row0 := mesh.Components * item

	for j := a.surf.TriStart; j < a.surf.TriEnd; j++ {
		if err := a.integrate(x, j, a.kss, row0, mesh.DofIndex(j-a.surf.TriStart, 0, 0)); err != nil {
			return err
		}
	}
	for j := a.fault.TriStart; j < a.fault.TriEnd; j++ {
		if err := a.integrate(x, j, a.ksf, row0, mesh.DofIndex(j-a.fault.TriStart, 0, 0)); err != nil {
			return err
		}
	}
	return nil
}

// integrate adds ∫_T G(x-y) φ_c(y) dA(y) for source triangle j into the 3×9
// block of dst at (row0, col0)
func (a *assembler) integrate(x [3]float64, j int, dst *mat.Dense, row0, col0 int) error {
	rule := a.far
	c := a.m.Centroid(j)
	dist := math.Sqrt((x[0]-c[0])*(x[0]-c[0]) + (x[1]-c[1])*(x[1]-c[1]) + (x[2]-c[2])*(x[2]-c[2]))
	if dist < a.threshold*a.m.Diameter(j) {
		rule = a.near
	}
	jac := 2 * a.m.TriArea(j)

	var block [3][9]float64
	for q, ref := range rule.Pts {
		y := a.m.MapToTri(j, ref)
		G := a.k.eval([3]float64{x[0] - y[0], x[1] - y[1], x[2] - y[2]})
		phi := quadrature.Basis(ref)
		w := rule.W[q] * jac
		for b := 0; b < mesh.CornersPerTri; b++ {
			for d := 0; d < 3; d++ {
				for e := 0; e < 3; e++ {
					block[d][b*3+e] += w * phi[b] * G[d][e]
				}
			}
		}
	}
	for d := 0; d < 3; d++ {
		for col := 0; col < 9; col++ {
			v := block[d][col]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrDegenerateGeometry, "non-finite interaction with triangle %d", j)
			}
			dst.Set(row0+d, col0+col, v)
		}
	}
	return nil
}

func (s *System) NSurf() int { return s.surf.NDofs() }
func (s *System) NSlip() int { return s.fault.NDofs() }

// NDofs is the length of a full solution vector
func (s *System) NDofs() int { return s.mesh.NDofsTotal() }

// SurfaceDofs returns the half-open range of surface DOFs in a solution vector
func (s *System) SurfaceDofs() (start, end int) { return s.surf.DofStart(), s.surf.DofEnd() }

// FaultDofs returns the half-open range of fault DOFs in a solution vector
func (s *System) FaultDofs() (start, end int) { return s.fault.DofStart(), s.fault.DofEnd() }

func (s *System) Mesh() *mesh.CombinedMesh { return s.mesh }
func (s *System) Config() Config            { return s.cfg }
