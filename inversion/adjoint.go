package inversion

import (
	"math"
	"math/rand/v2"

	"github.com/notargets/slipinv/lsmr"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// AdjointReport is the outcome of a dot-product test
type AdjointReport struct {
	Trials    int
	MaxRelErr float64 // max |⟨Av,w⟩ − ⟨v,Aᵀw⟩| / (‖Av‖‖w‖ + ‖v‖‖Aᵀw‖)
	Worst     int     // Trial that produced MaxRelErr
}

// Err returns ErrAdjoint when the worst mismatch exceeds tol
func (r AdjointReport) Err(tol float64) error {
	if !(r.MaxRelErr <= tol) {
		return errors.Wrapf(ErrAdjoint, "relative mismatch %.3e in trial %d exceeds %.1e",
			r.MaxRelErr, r.Worst, tol)
	}
	return nil
}

// CheckAdjoint probes op with standard normal vectors v, w and compares
// ⟨A·v, w⟩ with ⟨v, Aᵀ·w⟩
func CheckAdjoint(op lsmr.Operator, trials int, seed uint64) (AdjointReport, error) {
	if trials < 1 {
		return AdjointReport{}, errors.Wrapf(ErrInvalidConfig, "%d adjoint trials", trials)
	}
	m, n := op.Dims()
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	draw := func(k int) []float64 {
		v := make([]float64, k)
		for i := range v {
			v[i] = normal.Rand()
		}
		return v
	}
	rep := AdjointReport{Trials: trials}
	av := make([]float64, m)
	atw := make([]float64, n)
	for t := 0; t < trials; t++ {
		v, w := draw(n), draw(m)
		if err := op.Apply(av, v); err != nil {
			return rep, err
		}
		if err := op.ApplyTranspose(atw, w); err != nil {
			return rep, err
		}
		scale := floats.Norm(av, 2)*floats.Norm(w, 2) + floats.Norm(v, 2)*floats.Norm(atw, 2)
		if scale == 0 {
			continue
		}
		rel := math.Abs(floats.Dot(av, w)-floats.Dot(v, atw)) / scale
		if rel > rep.MaxRelErr || math.IsNaN(rel) {
			rep.MaxRelErr, rep.Worst = rel, t
		}
	}
	return rep, nil
}
