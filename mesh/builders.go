package mesh

import (
	"math"

	"github.com/notargets/slipinv/utils"
	"github.com/pkg/errors"
)

// Rect triangulates the bilinear patch spanned by four corners, given in
// order (0,0), (1,0), (1,1), (0,1), with nx by ny vertices
func Rect(name string, corners [4][3]float64, nx, ny int) (Piece, error) {
	if nx < 2 || ny < 2 {
		return Piece{}, errors.Wrapf(ErrInvalidMesh, "rect %q needs at least 2x2 vertices, got %dx%d", name, nx, ny)
	}
	p := Piece{
		Name: name,
		Pts:  make([][3]float64, 0, nx*ny),
		Tris: make([][3]int, 0, 2*(nx-1)*(ny-1)),
	}
	for j := 0; j < ny; j++ {
		s := float64(j) / float64(ny-1)
		for i := 0; i < nx; i++ {
			r := float64(i) / float64(nx-1)
			var x [3]float64
			for d := 0; d < 3; d++ {
				x[d] = (1-r)*(1-s)*corners[0][d] + r*(1-s)*corners[1][d] +
					r*s*corners[2][d] + (1-r)*s*corners[3][d]
			}
			p.Pts = append(p.Pts, x)
		}
	}
	for j := 0; j < ny-1; j++ {
		for i := 0; i < nx-1; i++ {
			v0 := j*nx + i
			v1 := v0 + 1
			v2 := v0 + nx + 1
			v3 := v0 + nx
			p.Tris = append(p.Tris, [3]int{v0, v1, v2}, [3]int{v0, v2, v3})
		}
	}
	return p, nil
}

// MakeMeshes builds the synthetic scenario: a flat square free surface of
// half width w with n×n vertices, and a vertical strike-slip fault in the
// plane y=0 spanning x in [-faultL, faultL], z in [topDepth-2*faultL, topDepth]
func MakeMeshes(faultL, topDepth, w float64, nSurf, nFault int) (surf, fault Piece, err error) {
	surf, err = Rect(Surf, [4][3]float64{
		{-w, -w, 0}, {w, -w, 0}, {w, w, 0}, {-w, w, 0},
	}, nSurf, nSurf)
	if err != nil {
		return
	}
	bottom := topDepth - 2*faultL
	fault, err = Rect(Fault, [4][3]float64{
		{-faultL, 0, bottom}, {faultL, 0, bottom}, {faultL, 0, topDepth}, {-faultL, 0, topDepth},
	}, nFault, nFault)
	return
}

// WithHill returns a copy of p with a Gaussian hill added to the z coordinate
func WithHill(p Piece, height, radius float64, center [2]float64) Piece {
	out := Piece{
		Name: p.Name,
		Pts:  make([][3]float64, len(p.Pts)),
		Tris: p.Tris,
	}
	for i, x := range p.Pts {
		dx := (x[0] - center[0]) / radius
		dy := (x[1] - center[1]) / radius
		out.Pts[i] = x
		out.Pts[i][2] += height * math.Exp(-(dx*dx + dy*dy))
	}
	return out
}

// CornerComponent extracts component comp of a 9-per-triangle field as
// [triangle][corner] values
func CornerComponent(dofs []float64, comp int) ([][3]float64, error) {
	if len(dofs)%DofsPerTri != 0 || comp < 0 || comp >= Components {
		return nil, errors.Wrapf(ErrInvalidMesh, "cannot extract component %d from %d dofs", comp, len(dofs))
	}
	out := make([][3]float64, len(dofs)/DofsPerTri)
	for k := range out {
		for b := 0; b < CornersPerTri; b++ {
			out[k][b] = dofs[DofIndex(k, b, comp)]
		}
	}
	return out, nil
}

// VertexValues averages a per-corner field of p over the triangles sharing
// each vertex
func VertexValues(p Piece, field [][3]float64) ([]float64, error) {
	vc, err := utils.NewVertexConnector(len(p.Pts), p.Tris)
	if err != nil {
		return nil, err
	}
	return vc.Average(field)
}
