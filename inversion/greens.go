package inversion

import (
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/notargets/slipinv/obsmap"
	"github.com/notargets/slipinv/partitions"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// BuildGreens forms the dense nObs×nSlip matrix G = M·F column by column,
// one forward solve per unit slip. Columns are distributed round robin over
// workers, so the solver must be safe for concurrent use.
func BuildGreens(ctx context.Context, solver ForwardSolver, obs *obsmap.Map, workers int) (*mat.Dense, error) {
	nObs, nCols := obs.Dims()
	if nCols != solver.NDofs() {
		return nil, errors.Wrapf(ErrShape, "observation map has %d columns, solver has %d dofs", nCols, solver.NDofs())
	}
	nSlip := solver.NSlip()
	pb := partitions.ForWorkers(nSlip, workers)
	pb.Strategy = partitions.RoundRobin
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, err
	}

	G := mat.NewDense(nObs, nSlip, nil)
	g, gctx := errgroup.WithContext(ctx)
	for _, part := range layout.Partitions {
		g.Go(func() error {
			unit := make([]float64, nSlip)
			col := make([]float64, nObs)
			for _, j := range part.Items {
				if err := gctx.Err(); err != nil {
					return err
				}
				unit[j] = 1
				soln, err := solver.Forward(unit)
				unit[j] = 0
				if err != nil {
					return errors.Wrapf(err, "green's function %d", j)
				}
				if err = obs.Apply(col, soln); err != nil {
					return err
				}
				G.SetCol(j, col)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return G, nil
}

// DenseOperator stacks the explicit regularized system [G; λ·I]
func DenseOperator(G mat.Matrix, reg float64) *mat.Dense {
	nObs, nSlip := G.Dims()
	A := mat.NewDense(nObs+nSlip, nSlip, nil)
	A.Slice(0, nObs, 0, nSlip).(*mat.Dense).Copy(G)
	for i := 0; i < nSlip; i++ {
		A.Set(nObs+i, i, reg)
	}
	return A
}

// SaveGreens writes G as a zstd compressed gonum binary matrix
func SaveGreens(w io.Writer, G *mat.Dense) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err = G.MarshalBinaryTo(enc); err != nil {
		enc.Close()
		return errors.Wrap(err, "encode green's functions")
	}
	return enc.Close()
}

// LoadGreens reads a matrix written by SaveGreens
func LoadGreens(r io.Reader) (*mat.Dense, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	var G mat.Dense
	if _, err = G.UnmarshalBinaryFrom(dec); err != nil {
		return nil, errors.Wrap(err, "decode green's functions")
	}
	return &G, nil
}
