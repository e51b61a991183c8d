package mesh

import "math"

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm3(a [3]float64) float64 {
	return math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
}

// Centroid of triangle k
func (m *CombinedMesh) Centroid(k int) [3]float64 {
	var c [3]float64
	for _, v := range m.Tris[k] {
		for d := 0; d < 3; d++ {
			c[d] += m.Pts[v][d] / 3
		}
	}
	return c
}

// Diameter is the longest edge of triangle k
func (m *CombinedMesh) Diameter(k int) float64 {
	var h float64
	tri := m.Tris[k]
	for b := 0; b < 3; b++ {
		p, q := m.Pts[tri[b]], m.Pts[tri[(b+1)%3]]
		h = math.Max(h, norm3([3]float64{q[0] - p[0], q[1] - p[1], q[2] - p[2]}))
	}
	return h
}

// MapToTri maps a point of the reference triangle onto triangle k
func (m *CombinedMesh) MapToTri(k int, ref [2]float64) [3]float64 {
	tri := m.Tris[k]
	a, b, c := m.Pts[tri[0]], m.Pts[tri[1]], m.Pts[tri[2]]
	var x [3]float64
	for d := 0; d < 3; d++ {
		x[d] = a[d] + ref[0]*(b[d]-a[d]) + ref[1]*(c[d]-a[d])
	}
	return x
}
