package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeshes(t *testing.T) (*CombinedMesh, Piece, Piece) {
	surf, fault, err := MakeMeshes(1, -0.5, 4, 4, 3)
	require.NoError(t, err)
	m, err := NewCombinedMesh(surf, fault)
	require.NoError(t, err)
	return m, surf, fault
}

func TestRect(t *testing.T) {
	p, err := Rect("r", [4][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}, 3, 4)
	require.NoError(t, err)
	assert.Len(t, p.Pts, 12)
	assert.Len(t, p.Tris, 2*2*3)
	assert.Equal(t, [3]float64{1, 1, 0}, p.Pts[11])

	var area float64
	m, err := NewCombinedMesh(p)
	require.NoError(t, err)
	for k := range m.Tris {
		area += m.TriArea(k)
	}
	assert.InDelta(t, 1., area, 1.e-14)

	_, err = Rect("r", [4][3]float64{}, 1, 4)
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestCombinedMeshLayout(t *testing.T) {
	m, surf, fault := testMeshes(t)
	assert.Len(t, m.Pts, len(surf.Pts)+len(fault.Pts))

	sr, err := m.Range(Surf)
	require.NoError(t, err)
	fr, err := m.Range(Fault)
	require.NoError(t, err)
	assert.Equal(t, 0, sr.DofStart())
	assert.Equal(t, sr.DofEnd(), fr.DofStart())
	assert.Equal(t, m.NDofsTotal(), fr.DofEnd())
	assert.Equal(t, 9*len(fault.Tris), fr.NDofs())

	n, err := m.NDofs(Fault)
	require.NoError(t, err)
	assert.Equal(t, 9*len(fault.Tris), n)

	// fault triangles are shifted into global point numbering
	ftris, err := m.PieceTris(Fault)
	require.NoError(t, err)
	assert.Equal(t, fault.Tris[0][1]+len(surf.Pts), ftris[0][1])

	_, err = m.Range("nope")
	assert.ErrorIs(t, err, ErrUnknownPiece)
}

func TestPtIdxs(t *testing.T) {
	m, surf, fault := testMeshes(t)
	idxs, err := m.PtIdxs(Fault)
	require.NoError(t, err)
	require.Len(t, idxs, len(fault.Pts))
	assert.Equal(t, len(surf.Pts), idxs[0])
	assert.IsIncreasing(t, idxs)
}

func TestNewCombinedMeshRejects(t *testing.T) {
	p := Piece{Name: "a", Pts: [][3]float64{{0, 0, 0}}, Tris: [][3]int{{0, 0, 1}}}
	_, err := NewCombinedMesh(p)
	assert.ErrorIs(t, err, ErrInvalidMesh)

	q := Piece{Name: "a"}
	_, err = NewCombinedMesh(q, q)
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestWithHill(t *testing.T) {
	surf, _, err := MakeMeshes(1, -0.5, 2, 5, 2)
	require.NoError(t, err)
	hill := WithHill(surf, 0.2, 0.5, [2]float64{0, 0})
	// centre vertex of a 5x5 grid over [-2,2]^2
	assert.InDelta(t, 0.2, hill.Pts[12][2], 1.e-15)
	assert.Equal(t, 0., surf.Pts[12][2])
	assert.Less(t, hill.Pts[0][2], 1.e-10)
}

func TestVertexValues(t *testing.T) {
	_, _, fault := testMeshes(t)
	dofs := make([]float64, 9*len(fault.Tris))
	for k := range fault.Tris {
		for b := 0; b < 3; b++ {
			dofs[DofIndex(k, b, 0)] = 2
			dofs[DofIndex(k, b, 1)] = float64(k)
		}
	}
	field, err := CornerComponent(dofs, 0)
	require.NoError(t, err)
	vals, err := VertexValues(fault, field)
	require.NoError(t, err)
	for _, v := range vals {
		assert.InDelta(t, 2., v, 1.e-15)
	}

	_, err = CornerComponent(dofs, 3)
	assert.Error(t, err)
}

func TestGeometry(t *testing.T) {
	p := Piece{Name: "t", Pts: [][3]float64{{0, 0, 0}, {3, 0, 0}, {0, 4, 0}}, Tris: [][3]int{{0, 1, 2}}}
	m, err := NewCombinedMesh(p)
	require.NoError(t, err)
	assert.InDelta(t, 6., m.TriArea(0), 1.e-15)
	assert.InDelta(t, 5., m.Diameter(0), 1.e-15)
	c := m.Centroid(0)
	assert.InDeltaSlice(t, []float64{1, 4. / 3., 0}, c[:], 1.e-15)
	x := m.MapToTri(0, [2]float64{0.5, 0.5})
	assert.InDeltaSlice(t, []float64{1.5, 2, 0}, x[:], 1.e-15)
}
