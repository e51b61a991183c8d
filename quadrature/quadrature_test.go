package quadrature

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJacobiGQLegendre(t *testing.T) {
	// 3-point Gauss-Legendre
	X, W := JacobiGQ(0, 0, 2)
	r := math.Sqrt(3. / 5.)
	assert.InDeltaSlice(t, []float64{-r, 0, r}, X, 1.e-12)
	assert.InDeltaSlice(t, []float64{5. / 9., 8. / 9., 5. / 9.}, W, 1.e-12)
}

func TestJacobiGQWeightSum(t *testing.T) {
	for _, ab := range [][2]float64{{0, 0}, {1, 0}, {2, 1}} {
		for N := 0; N < 6; N++ {
			_, W := JacobiGQ(ab[0], ab[1], N)
			var sum float64
			for _, w := range W {
				sum += w
			}
			assert.InDelta(t, Gamma0(ab[0], ab[1]), sum, 1.e-12)
		}
	}
}

func factorial(n int) float64 {
	f := 1.
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// TestTrianglePolynomialExactness integrates x^i y^j over the reference
// triangle, exact value i! j! / (i+j+2)!
func TestTrianglePolynomialExactness(t *testing.T) {
	for order := 1; order <= 5; order++ {
		t.Run(fmt.Sprintf("order=%d", order), func(t *testing.T) {
			rule, err := Triangle(order)
			require.NoError(t, err)
			require.Len(t, rule.W, order*order)
			for deg := 0; deg <= 2*order-1; deg++ {
				for i := 0; i <= deg; i++ {
					j := deg - i
					var got float64
					for q, p := range rule.Pts {
						got += rule.W[q] * math.Pow(p[0], float64(i)) * math.Pow(p[1], float64(j))
					}
					want := factorial(i) * factorial(j) / factorial(i+j+2)
					assert.InDelta(t, want, got, 1.e-13, "x^%d y^%d", i, j)
				}
			}
		})
	}
}

func TestTriangleInvalidOrder(t *testing.T) {
	_, err := Triangle(0)
	assert.Error(t, err)
}

func TestBasisPartitionOfUnity(t *testing.T) {
	rule, err := Triangle(3)
	require.NoError(t, err)
	for _, p := range rule.Pts {
		phi := Basis(p)
		assert.InDelta(t, 1., phi[0]+phi[1]+phi[2], 1.e-15)
	}
}
