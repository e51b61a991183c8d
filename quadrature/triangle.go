package quadrature

import "github.com/pkg/errors"

// Rule is a quadrature rule on the reference triangle (0,0),(1,0),(0,1).
// Weights sum to the reference area 1/2.
type Rule struct {
	Order int
	Pts   [][2]float64
	W     []float64
}

// Triangle builds a collapsed (Duffy) tensor rule with order points in each
// direction: Gauss-Jacobi(1,0) in the collapsed direction absorbs the
// Jacobian, Gauss-Legendre in the other. Polynomials of total degree
// 2*order-1 are integrated exactly.
func Triangle(order int) (*Rule, error) {
	if order < 1 {
		return nil, errors.Errorf("invalid triangle quadrature order %d", order)
	}
	xa, wa := JacobiGQ(1, 0, order-1)
	xb, wb := JacobiGQ(0, 0, order-1)
	r := &Rule{
		Order: order,
		Pts:   make([][2]float64, 0, order*order),
		W:     make([]float64, 0, order*order),
	}
	for i := range xa {
		u := (xa[i] + 1) / 2
		for j := range xb {
			v := (xb[j] + 1) / 2
			r.Pts = append(r.Pts, [2]float64{u, v * (1 - u)})
			r.W = append(r.W, wa[i]*wb[j]/8)
		}
	}
	return r, nil
}

// Basis evaluates the three linear corner shape functions at a reference point.
func Basis(p [2]float64) [3]float64 {
	return [3]float64{1 - p[0] - p[1], p[0], p[1]}
}
