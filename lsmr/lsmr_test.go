package lsmr

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func denseOperator(A *mat.Dense) FuncOperator {
	m, n := A.Dims()
	return FuncOperator{
		M: m, N: n,
		MatVec: func(dst, x []float64) error {
			mat.NewVecDense(m, dst).MulVec(A, mat.NewVecDense(n, x))
			return nil
		},
		RMatVec: func(dst, x []float64) error {
			mat.NewVecDense(n, dst).MulVec(A.T(), mat.NewVecDense(m, x))
			return nil
		},
	}
}

func randomDense(m, n int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, 17))
	data := make([]float64, m*n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(m, n, data)
}

func randomVec(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 29))
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

func tight() Settings {
	return Settings{ATol: 1.e-12, BTol: 1.e-12, MaxIterations: 500}
}

func TestSolveMatchesQR(t *testing.T) {
	for _, sz := range []struct{ m, n int }{{10, 10}, {30, 8}, {60, 25}} {
		A := randomDense(sz.m, sz.n, uint64(sz.m*100+sz.n))
		b := randomVec(sz.m, uint64(sz.n))

		var qr mat.QR
		qr.Factorize(A)
		var want mat.Dense
		require.NoError(t, qr.SolveTo(&want, false, mat.NewDense(sz.m, 1, b)))

		res, err := Solve(denseOperator(A), b, tight())
		require.NoError(t, err)
		assert.True(t, res.Reason.Converged(), res.Reason.String())
		assert.InDeltaSlice(t, want.RawMatrix().Data, res.X, 1.e-6)
	}
}

func TestSolveConsistentSystem(t *testing.T) {
	A := randomDense(40, 12, 3)
	xTrue := randomVec(12, 4)
	b := make([]float64, 40)
	require.NoError(t, denseOperator(A).Apply(b, xTrue))

	res, err := Solve(denseOperator(A), b, tight())
	require.NoError(t, err)
	assert.Equal(t, Compatible, res.Reason)
	assert.InDeltaSlice(t, xTrue, res.X, 1.e-9)
	assert.Less(t, res.NormR, 1.e-9*floats.Norm(b, 2))
}

func TestSolveZeroRHS(t *testing.T) {
	A := randomDense(5, 3, 1)
	res, err := Solve(denseOperator(A), make([]float64, 5), DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, ExactZero, res.Reason)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, []float64{0, 0, 0}, res.X)
}

func TestSolveRHSOrthogonalToRange(t *testing.T) {
	// Aᵀb = 0 so x = 0 is already the least-squares solution
	A := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0, 0})
	res, err := Solve(denseOperator(A), []float64{0, 0, 2}, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, ExactZero, res.Reason)
	assert.InDelta(t, 2., res.NormR, 1.e-15)
}

func TestSolveDamped(t *testing.T) {
	var (
		m, n = 25, 10
		damp = 0.7
		A    = randomDense(m, n, 9)
		b    = randomVec(m, 10)
	)
	// (AᵀA + damp² I) x = Aᵀb
	var N mat.Dense
	N.Mul(A.T(), A)
	for i := 0; i < n; i++ {
		N.Set(i, i, N.At(i, i)+damp*damp)
	}
	var rhs, want mat.VecDense
	rhs.MulVec(A.T(), mat.NewVecDense(m, b))
	require.NoError(t, want.SolveVec(&N, &rhs))

	s := tight()
	s.Damp = damp
	res, err := Solve(denseOperator(A), b, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.RawVector().Data, res.X, 1.e-9)
}

func TestSolveIterationLimit(t *testing.T) {
	A := randomDense(50, 20, 5)
	b := randomVec(50, 6)
	s := tight()
	s.MaxIterations = 3
	res, err := Solve(denseOperator(A), b, s)
	require.NoError(t, err)
	assert.Equal(t, IterationLimit, res.Reason)
	assert.False(t, res.Reason.Converged())
	assert.Equal(t, 3, res.Iterations)
}

func TestSolveResidualsMonotone(t *testing.T) {
	A := randomDense(40, 15, 11)
	b := randomVec(40, 12)
	var normR []float64
	s := tight()
	s.Observer = func(p Progress) {
		normR = append(normR, p.NormR)
		assert.Len(t, p.X, 15)
	}
	res, err := Solve(denseOperator(A), b, s)
	require.NoError(t, err)
	require.Len(t, normR, res.Iterations)
	for i := 1; i < len(normR); i++ {
		assert.LessOrEqual(t, normR[i], normR[i-1]*(1+1.e-10), "iteration %d", i+1)
	}
}

func TestSolveOperatorErrorPropagates(t *testing.T) {
	sentinel := errors.New("forward failed")
	A := randomDense(6, 4, 2)
	op := denseOperator(A)
	op.MatVec = func(dst, x []float64) error { return sentinel }
	_, err := Solve(op, randomVec(6, 3), DefaultSettings())
	assert.ErrorIs(t, err, sentinel)

	op = denseOperator(A)
	op.RMatVec = func(dst, x []float64) error { return errors.Wrap(sentinel, "adjoint") }
	_, err = Solve(op, randomVec(6, 3), DefaultSettings())
	assert.ErrorIs(t, err, sentinel)
}

func TestSolveValidation(t *testing.T) {
	A := randomDense(4, 2, 1)
	_, err := Solve(denseOperator(A), make([]float64, 3), DefaultSettings())
	assert.ErrorIs(t, err, ErrDimension)

	s := DefaultSettings()
	s.ATol = -1
	_, err = Solve(denseOperator(A), make([]float64, 4), s)
	assert.ErrorIs(t, err, ErrSettings)

	s = DefaultSettings()
	s.Damp = math.NaN()
	_, err = Solve(denseOperator(A), make([]float64, 4), s)
	assert.ErrorIs(t, err, ErrSettings)
}

func TestStopReasonStrings(t *testing.T) {
	for r := ExactZero; r <= IterationLimit; r++ {
		assert.NotEqual(t, "unknown", r.String())
	}
	assert.Equal(t, "unknown", StopReason(42).String())
	assert.True(t, LeastSquares.Converged())
	assert.False(t, ConditionLimit.Converged())
}
