package obsmap

import (
	"testing"

	"github.com/notargets/slipinv/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testMesh(t *testing.T, nSurf int) *mesh.CombinedMesh {
	surf, fault, err := mesh.MakeMeshes(1, -0.5, 3, nSurf, 3)
	require.NoError(t, err)
	m, err := mesh.NewCombinedMesh(surf, fault)
	require.NoError(t, err)
	return m
}

func TestBuildRowsEqualNNZ(t *testing.T) {
	for _, n := range []int{3, 4, 6} {
		m := testMesh(t, n)
		surfPts, err := m.PtIdxs(mesh.Surf)
		require.NoError(t, err)
		for _, dims := range [][]int{{0}, {0, 1}, {0, 1, 2}, {2, 0}} {
			om, err := Build(m, surfPts, dims)
			require.NoError(t, err)
			r, c := om.Dims()
			assert.Equal(t, len(surfPts)*len(dims), r)
			assert.Equal(t, m.NDofsTotal(), c)
			assert.Equal(t, r, om.NNZ())
			rr, cc := om.Matrix().Dims()
			assert.Equal(t, r, rr)
			assert.Equal(t, c, cc)
		}
	}
}

func TestFirstTriangleWins(t *testing.T) {
	// 4x4 surface grid: vertex 5 is corner 2 of triangle 0 and also belongs
	// to triangles 1, 2, 6 and 7
	m := testMesh(t, 4)
	om, err := Build(m, []int{5, 0}, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, om.Vertices())
	assert.Equal(t, []int{0, 1}, om.Components())

	assert.Equal(t, mesh.DofIndex(0, 0, 0), om.Column(0))
	assert.Equal(t, mesh.DofIndex(0, 0, 1), om.Column(1))
	assert.Equal(t, mesh.DofIndex(0, 2, 0), om.Column(2))
	assert.Equal(t, mesh.DofIndex(0, 2, 1), om.Column(3))
}

func TestApplyAndTranspose(t *testing.T) {
	m := testMesh(t, 4)
	surfPts, err := m.PtIdxs(mesh.Surf)
	require.NoError(t, err)
	om, err := Build(m, surfPts, []int{0, 2})
	require.NoError(t, err)
	r, c := om.Dims()

	soln := make([]float64, c)
	for i := range soln {
		soln[i] = float64(i)
	}
	obs := make([]float64, r)
	require.NoError(t, om.Apply(obs, soln))
	for i := range obs {
		assert.Equal(t, float64(om.Column(i)), obs[i])
	}

	y := make([]float64, r)
	for i := range y {
		y[i] = float64(i%7) - 3
	}
	back := make([]float64, c)
	require.NoError(t, om.ApplyTranspose(back, y))
	assert.InDelta(t, floats.Dot(obs, y), floats.Dot(soln, back), 1.e-9)

	assert.ErrorIs(t, om.Apply(obs[1:], soln), ErrDimension)
	assert.ErrorIs(t, om.ApplyTranspose(back, y[1:]), ErrDimension)
}

// Products come from the compressed matrix and overwrite whatever dst held
func TestApplyMatchesMatrix(t *testing.T) {
	m := testMesh(t, 5)
	surfPts, err := m.PtIdxs(mesh.Surf)
	require.NoError(t, err)
	om, err := Build(m, surfPts, []int{1, 0})
	require.NoError(t, err)
	r, c := om.Dims()

	soln := make([]float64, c)
	for i := range soln {
		soln[i] = 0.5*float64(i) - 7
	}
	obs := make([]float64, r)
	for i := range obs {
		obs[i] = 1.e3
	}
	require.NoError(t, om.Apply(obs, soln))
	var want mat.VecDense
	want.MulVec(om.Matrix(), mat.NewVecDense(c, soln))
	assert.Equal(t, want.RawVector().Data, obs)

	back := make([]float64, c)
	for i := range back {
		back[i] = -1.e3
	}
	require.NoError(t, om.ApplyTranspose(back, obs))
	var wantT mat.VecDense
	wantT.MulVec(om.Matrix().T(), mat.NewVecDense(r, obs))
	assert.Equal(t, wantT.RawVector().Data, back)
}

func TestBuildPreconditions(t *testing.T) {
	m := testMesh(t, 4)
	faultPts, err := m.PtIdxs(mesh.Fault)
	require.NoError(t, err)

	tests := []struct {
		name     string
		vertices []int
		dims     []int
	}{
		{"fault vertex", []int{0, faultPts[0]}, []int{0}},
		{"out of range", []int{0, len(m.Pts) + 3}, []int{0}},
		{"negative", []int{-1}, []int{0}},
		{"duplicate vertex", []int{1, 1}, []int{0}},
		{"no vertices", nil, []int{0}},
		{"bad component", []int{0}, []int{3}},
		{"repeated component", []int{0}, []int{1, 1}},
		{"no components", []int{0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(m, tt.vertices, tt.dims)
			assert.ErrorIs(t, err, ErrInvalidSelection)
		})
	}
}

func TestBuildRequiresSurface(t *testing.T) {
	_, fault, err := mesh.MakeMeshes(1, -0.5, 3, 3, 3)
	require.NoError(t, err)
	m, err := mesh.NewCombinedMesh(fault)
	require.NoError(t, err)
	_, err = Build(m, []int{0}, []int{0})
	assert.ErrorIs(t, err, ErrInvalidSelection)
}
