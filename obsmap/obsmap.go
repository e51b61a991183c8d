// Package obsmap builds the sparse selection operator that restricts a full
// boundary solution vector to the observed surface displacement components.
package obsmap

import (
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/notargets/slipinv/mesh"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSelection = errors.New("invalid observation selection")
	ErrIncomplete       = errors.New("observation map incomplete")
	ErrDimension        = errors.New("dimension mismatch")
)

// Map selects one solution entry per (observed vertex, component) row.
// Row r = rank(vertex)*len(dims) + p observes component dims[p] of the
// r-th observed vertex in ascending index order. Each vertex is read from
// the corner of the first surface triangle, in mesh order, that owns it.
type Map struct {
	csr        *sparse.CSR
	rows, cols int
	vertices   []int
	dims       []int
}

// Build constructs the observation map for the surface piece of m
func Build(m *mesh.CombinedMesh, obsPtIdxs []int, whichDims []int) (*Map, error) {
	surf, err := m.Range(mesh.Surf)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSelection, err.Error())
	}
	dims, err := checkDims(whichDims)
	if err != nil {
		return nil, err
	}
	vertices, err := checkVertices(m, obsPtIdxs)
	if err != nil {
		return nil, err
	}

	rowBlock := make(map[int]int, len(vertices))
	for r, v := range vertices {
		rowBlock[v] = r
	}
	vc, err := m.Connector(mesh.Surf)
	if err != nil {
		return nil, err
	}
	if err = vc.Verify(); err != nil {
		return nil, errors.Wrap(ErrInvalidSelection, err.Error())
	}

	nd := len(dims)
	var (
		rows  = make([]int, 0, len(vertices)*nd)
		cols  = make([]int, 0, len(vertices)*nd)
		data  = make([]float64, 0, len(vertices)*nd)
		nRows = len(vertices) * nd
		nCols = m.NDofsTotal()
	)
	// Iterating vertices and taking their first owner is equivalent to a
	// triangle sweep that skips already claimed vertices.
	for _, v := range vertices {
		owner, ok := vc.FirstOwner(v)
		if !ok {
			continue
		}
		tri := surf.TriStart + owner.Tri
		for p, d := range dims {
			rows = append(rows, rowBlock[v]*nd+p)
			cols = append(cols, mesh.DofIndex(tri, owner.Local, d))
			data = append(data, 1.0)
		}
	}

	csr := sparse.NewCOO(nRows, nCols, rows, cols, data).ToCSR()
	if nnz := csr.NNZ(); nnz != nRows {
		return nil, errors.Wrapf(ErrIncomplete, "%d rows but %d nonzeros", nRows, nnz)
	}

	raw := csr.RawMatrix()
	for i := 0; i < nRows; i++ {
		if n := raw.Indptr[i+1] - raw.Indptr[i]; n != 1 {
			return nil, errors.Wrapf(ErrIncomplete, "row %d has %d entries", i, n)
		}
	}
	return &Map{
		csr:      csr,
		rows:     nRows,
		cols:     nCols,
		vertices: vertices,
		dims:     dims,
	}, nil
}

func checkDims(whichDims []int) ([]int, error) {
	if len(whichDims) == 0 || len(whichDims) > mesh.Components {
		return nil, errors.Wrapf(ErrInvalidSelection, "need 1 to %d components, got %v",
			mesh.Components, whichDims)
	}
	var seen [mesh.Components]bool
	dims := make([]int, len(whichDims))
	for i, d := range whichDims {
		if d < 0 || d >= mesh.Components {
			return nil, errors.Wrapf(ErrInvalidSelection, "component %d not in {0,1,2}", d)
		}
		if seen[d] {
			return nil, errors.Wrapf(ErrInvalidSelection, "component %d repeated", d)
		}
		seen[d] = true
		dims[i] = d
	}
	return dims, nil
}

func checkVertices(m *mesh.CombinedMesh, obsPtIdxs []int) ([]int, error) {
	if len(obsPtIdxs) == 0 {
		return nil, errors.Wrap(ErrInvalidSelection, "no observed vertices")
	}
	surfPts, err := m.PtIdxs(mesh.Surf)
	if err != nil {
		return nil, err
	}
	onSurf := make(map[int]bool, len(surfPts))
	for _, v := range surfPts {
		onSurf[v] = true
	}
	vertices := make([]int, len(obsPtIdxs))
	copy(vertices, obsPtIdxs)
	sort.Ints(vertices)
	for i, v := range vertices {
		if i > 0 && vertices[i-1] == v {
			return nil, errors.Wrapf(ErrInvalidSelection, "vertex %d observed twice", v)
		}
		if !onSurf[v] {
			return nil, errors.Wrapf(ErrInvalidSelection, "vertex %d is not a surface vertex", v)
		}
	}
	return vertices, nil
}

// Dims returns (observations, solution length)
func (om *Map) Dims() (r, c int) { return om.rows, om.cols }

func (om *Map) NNZ() int { return om.csr.NNZ() }

// Matrix exposes the compressed sparse row form
func (om *Map) Matrix() *sparse.CSR { return om.csr }

// Vertices lists the observed vertices in row-block order
func (om *Map) Vertices() []int { return append([]int(nil), om.vertices...) }

// Components lists the observed components in row order within a block
func (om *Map) Components() []int { return append([]int(nil), om.dims...) }

// Column returns the solution index read by row i
func (om *Map) Column(i int) int {
	raw := om.csr.RawMatrix()
	return raw.Ind[raw.Indptr[i]]
}

// Apply computes dst = M * soln
func (om *Map) Apply(dst, soln []float64) error {
	if len(dst) != om.rows || len(soln) != om.cols {
		return errors.Wrapf(ErrDimension, "apply %dx%d map: dst %d, soln %d",
			om.rows, om.cols, len(dst), len(soln))
	}
	zero(dst)
	om.csr.MulVecTo(dst, false, soln)
	return nil
}

// ApplyTranspose computes dst = Mᵀ * obs, overwriting dst
func (om *Map) ApplyTranspose(dst, obs []float64) error {
	if len(dst) != om.cols || len(obs) != om.rows {
		return errors.Wrapf(ErrDimension, "apply transpose %dx%d map: dst %d, obs %d",
			om.rows, om.cols, len(dst), len(obs))
	}
	zero(dst)
	om.csr.MulVecTo(dst, true, obs)
	return nil
}

// zero clears v before MulVecTo, which accumulates into dst
func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
