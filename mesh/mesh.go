package mesh

import (
	"sort"

	"github.com/notargets/slipinv/utils"
	"github.com/pkg/errors"
)

// Piece names used by the inversion
const (
	Surf  = "surf"
	Fault = "fault"
)

// DOF layout: 3 corners x 3 vector components per triangle
const (
	CornersPerTri = 3
	Components    = 3
	DofsPerTri    = CornersPerTri * Components
)

var (
	ErrUnknownPiece = errors.New("unknown mesh piece")
	ErrInvalidMesh  = errors.New("invalid mesh")
)

// Piece is a named triangulated surface with its own point numbering
type Piece struct {
	Name string
	Pts  [][3]float64
	Tris [][3]int
}

// PieceRange locates a piece inside a CombinedMesh
type PieceRange struct {
	Name             string
	PtStart, PtEnd   int
	TriStart, TriEnd int
}

func (r PieceRange) NTris() int    { return r.TriEnd - r.TriStart }
func (r PieceRange) NDofs() int    { return DofsPerTri * r.NTris() }
func (r PieceRange) DofStart() int { return DofsPerTri * r.TriStart }
func (r PieceRange) DofEnd() int   { return DofsPerTri * r.TriEnd }

// CombinedMesh concatenates pieces into one point and triangle list. Points
// are not merged across pieces, so each piece keeps its own vertices.
type CombinedMesh struct {
	Pts    [][3]float64
	Tris   [][3]int
	pieces []PieceRange
}

// NewCombinedMesh concatenates the pieces in the given order
func NewCombinedMesh(pieces ...Piece) (*CombinedMesh, error) {
	m := &CombinedMesh{}
	seen := make(map[string]bool)
	for _, p := range pieces {
		if p.Name == "" {
			return nil, errors.Wrap(ErrInvalidMesh, "unnamed piece")
		}
		if seen[p.Name] {
			return nil, errors.Wrapf(ErrInvalidMesh, "duplicate piece %q", p.Name)
		}
		seen[p.Name] = true
		r := PieceRange{
			Name:     p.Name,
			PtStart:  len(m.Pts),
			TriStart: len(m.Tris),
		}
		m.Pts = append(m.Pts, p.Pts...)
		for k, tri := range p.Tris {
			var g [3]int
			for b, v := range tri {
				if v < 0 || v >= len(p.Pts) {
					return nil, errors.Wrapf(ErrInvalidMesh,
						"piece %q triangle %d references point %d of %d", p.Name, k, v, len(p.Pts))
				}
				g[b] = v + r.PtStart
			}
			m.Tris = append(m.Tris, g)
		}
		r.PtEnd = len(m.Pts)
		r.TriEnd = len(m.Tris)
		m.pieces = append(m.pieces, r)
	}
	return m, nil
}

// DofIndex is the global solution index of component comp at corner of tri
func DofIndex(tri, corner, comp int) int {
	return tri*DofsPerTri + corner*Components + comp
}

// Range returns the location of the named piece
func (m *CombinedMesh) Range(name string) (PieceRange, error) {
	for _, r := range m.pieces {
		if r.Name == name {
			return r, nil
		}
	}
	return PieceRange{}, errors.Wrapf(ErrUnknownPiece, "%q", name)
}

// NDofsTotal is the length of a solution vector over all pieces
func (m *CombinedMesh) NDofsTotal() int { return DofsPerTri * len(m.Tris) }

// NDofs is the DOF count of a piece
func (m *CombinedMesh) NDofs(name string) (int, error) {
	r, err := m.Range(name)
	if err != nil {
		return 0, err
	}
	return r.NDofs(), nil
}

// PieceTris returns the triangles of a piece in global point numbering
func (m *CombinedMesh) PieceTris(name string) ([][3]int, error) {
	r, err := m.Range(name)
	if err != nil {
		return nil, err
	}
	return m.Tris[r.TriStart:r.TriEnd], nil
}

// PtIdxs returns the sorted distinct global vertex indices used by a piece
func (m *CombinedMesh) PtIdxs(name string) ([]int, error) {
	tris, err := m.PieceTris(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var idxs []int
	for _, tri := range tris {
		for _, v := range tri {
			if !seen[v] {
				seen[v] = true
				idxs = append(idxs, v)
			}
		}
	}
	sort.Ints(idxs)
	return idxs, nil
}

// Connector builds the vertex → corner map of a piece. Triangle indices in
// the connector are local to the piece, vertex indices are global.
func (m *CombinedMesh) Connector(name string) (*utils.VertexConnector, error) {
	tris, err := m.PieceTris(name)
	if err != nil {
		return nil, err
	}
	return utils.NewVertexConnector(len(m.Pts), tris)
}

// TriArea returns the area of triangle k
func (m *CombinedMesh) TriArea(k int) float64 {
	a, b, c := m.Pts[m.Tris[k][0]], m.Pts[m.Tris[k][1]], m.Pts[m.Tris[k][2]]
	return triArea(a, b, c)
}

func triArea(a, b, c [3]float64) float64 {
	e1 := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := cross(e1, e2)
	return 0.5 * norm3(n)
}
