package bem

import "math"

// kelvin is the regularized Kelvin point-force tensor of an infinite
// isotropic elastic solid
//
//	G_de(r) = ((3-4ν) δ_de + r_d r_e / |r|²) / (16 π μ (1-ν) |r|)
//
// with |r|² replaced by |r|² + core².
type kelvin struct {
	pre, a, core2 float64
}

func newKelvin(sm, pr, core float64) kelvin {
	return kelvin{
		pre:   1 / (16 * math.Pi * sm * (1 - pr)),
		a:     3 - 4*pr,
		core2: core * core,
	}
}

func (k kelvin) eval(r [3]float64) (g [3][3]float64) {
	r2 := r[0]*r[0] + r[1]*r[1] + r[2]*r[2] + k.core2
	f := k.pre / math.Sqrt(r2)
	for d := 0; d < 3; d++ {
		for e := 0; e < 3; e++ {
			g[d][e] = f * r[d] * r[e] / r2
		}
		g[d][d] += f * k.a
	}
	return
}
