package lsmr

// Operator is an implicit m×n matrix known only through its products
type Operator interface {
	Dims() (m, n int)
	// Apply computes dst = A·x (len(dst) == m, len(x) == n)
	Apply(dst, x []float64) error
	// ApplyTranspose computes dst = Aᵀ·x (len(dst) == n, len(x) == m)
	ApplyTranspose(dst, x []float64) error
}

// FuncOperator adapts a pair of closures to an Operator
type FuncOperator struct {
	M, N    int
	MatVec  func(dst, x []float64) error
	RMatVec func(dst, x []float64) error
}

func (f FuncOperator) Dims() (m, n int)                      { return f.M, f.N }
func (f FuncOperator) Apply(dst, x []float64) error          { return f.MatVec(dst, x) }
func (f FuncOperator) ApplyTranspose(dst, x []float64) error { return f.RMatVec(dst, x) }
