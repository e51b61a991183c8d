package utils

import (
	"github.com/pkg/errors"
)

// Corner identifies corner Local (0..2) of triangle Tri
type Corner struct {
	Tri   int
	Local int
}

// VertexConnector maps every vertex to the triangle corners that reference it.
// Owners are recorded in triangle enumeration order, so the first owner of a
// vertex is the lowest-numbered triangle touching it. Consumers that need a
// single representative corner per vertex use FirstOwner, which makes that
// tie-break an explicit policy instead of an iteration artifact.
type VertexConnector struct {
	NumVertices int
	K           int // Triangles
	EToV        [][3]int

	Owners [][]Corner // [vertex] → owning corners
}

// NewVertexConnector builds the vertex → corner map for a triangle list
func NewVertexConnector(numVertices int, EToV [][3]int) (*VertexConnector, error) {
	if numVertices < 0 {
		return nil, errors.Errorf("invalid vertex count %d", numVertices)
	}
	vc := &VertexConnector{
		NumVertices: numVertices,
		K:           len(EToV),
		EToV:        EToV,
		Owners:      make([][]Corner, numVertices),
	}
	for k, tri := range EToV {
		for b, v := range tri {
			if v < 0 || v >= numVertices {
				return nil, errors.Errorf("triangle %d corner %d: vertex %d out of range [0,%d)",
					k, b, v, numVertices)
			}
			vc.Owners[v] = append(vc.Owners[v], Corner{Tri: k, Local: b})
		}
	}
	return vc, nil
}

// FirstOwner returns the corner of the first triangle, in enumeration order,
// that references vertex v
func (vc *VertexConnector) FirstOwner(v int) (Corner, bool) {
	if v < 0 || v >= vc.NumVertices || len(vc.Owners[v]) == 0 {
		return Corner{}, false
	}
	return vc.Owners[v][0], true
}

// Valence is the number of triangle corners sharing vertex v
func (vc *VertexConnector) Valence(v int) int {
	if v < 0 || v >= vc.NumVertices {
		return 0
	}
	return len(vc.Owners[v])
}

// Average reduces a per-corner field ([triangle][corner]) to per-vertex means.
// Vertices referenced by no triangle get zero.
func (vc *VertexConnector) Average(field [][3]float64) ([]float64, error) {
	if len(field) != vc.K {
		return nil, errors.Errorf("field has %d triangles, connector has %d", len(field), vc.K)
	}
	out := make([]float64, vc.NumVertices)
	for v, owners := range vc.Owners {
		n := vc.Valence(v)
		if n == 0 {
			continue
		}
		var sum float64
		for _, c := range owners {
			sum += field[c.Tri][c.Local]
		}
		out[v] = sum / float64(n)
	}
	return out, nil
}

// Verify checks index validity and that every corner is recorded exactly once
func (vc *VertexConnector) Verify() error {
	total := 0
	for v, owners := range vc.Owners {
		for _, c := range owners {
			if c.Tri < 0 || c.Tri >= vc.K || c.Local < 0 || c.Local > 2 {
				return errors.Errorf("vertex %d: invalid corner %+v", v, c)
			}
			if vc.EToV[c.Tri][c.Local] != v {
				return errors.Errorf("vertex %d: corner %+v references vertex %d",
					v, c, vc.EToV[c.Tri][c.Local])
			}
		}
		total += len(owners)
	}
	if total != 3*vc.K {
		return errors.Errorf("conservation error: %d recorded corners != %d", total, 3*vc.K)
	}
	return nil
}
