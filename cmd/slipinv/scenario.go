package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/notargets/slipinv/bem"
	"github.com/notargets/slipinv/mesh"
	"github.com/notargets/slipinv/obsmap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// scenario holds the data generated on the hill geometry and the system
// assembled on the flat geometry used for inversion
type scenario struct {
	fault    mesh.Piece
	sys      *bem.System
	obs      *obsmap.Map
	bObs     []float64
	trueSlip []float64
}

func buildScenario(ctx context.Context, s settings, log *zap.Logger) (*scenario, error) {
	ms := s.Mesh
	flat, fault, err := mesh.MakeMeshes(ms.FaultLength, ms.TopDepth, ms.SurfWidth, ms.NSurf, ms.NFault)
	if err != nil {
		return nil, err
	}
	hill := mesh.WithHill(flat, ms.HillHeight, ms.HillRadius, [2]float64{0, 0})

	hillMesh, err := mesh.NewCombinedMesh(hill, fault)
	if err != nil {
		return nil, err
	}
	fwd, err := bem.Assemble(ctx, hillMesh, s.BEM, log.Named("forward"))
	if err != nil {
		return nil, errors.Wrap(err, "assemble hill system")
	}
	sc := &scenario{fault: fault, trueSlip: make([]float64, fwd.NSlip())}
	for i := 0; i < len(sc.trueSlip); i += mesh.Components {
		sc.trueSlip[i] = 1
	}
	soln, err := fwd.Forward(sc.trueSlip)
	if err != nil {
		return nil, err
	}

	obsPts, err := hillMesh.PtIdxs(mesh.Surf)
	if err != nil {
		return nil, err
	}
	if sc.obs, err = obsmap.Build(hillMesh, obsPts, s.Inversion.WhichDims); err != nil {
		return nil, err
	}
	nObs, _ := sc.obs.Dims()
	sc.bObs = make([]float64, nObs)
	if err = sc.obs.Apply(sc.bObs, soln); err != nil {
		return nil, err
	}

	// Same topology, so the observation map carries over unchanged
	flatMesh, err := mesh.NewCombinedMesh(flat, fault)
	if err != nil {
		return nil, err
	}
	if sc.sys, err = bem.Assemble(ctx, flatMesh, s.BEM, log.Named("inverse")); err != nil {
		return nil, errors.Wrap(err, "assemble flat system")
	}
	log.Info("scenario ready",
		zap.Int("observations", nObs),
		zap.Int("slip_dofs", sc.sys.NSlip()),
		zap.Int("surface_dofs", sc.sys.NSurf()))
	return sc, nil
}

// writeVertexSlip prints the strike slip component averaged to fault
// vertices
func (sc *scenario) writeVertexSlip(w io.Writer, slip []float64) error {
	field, err := mesh.CornerComponent(slip, 0)
	if err != nil {
		return err
	}
	vals, err := mesh.VertexValues(sc.fault, field)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "vertex\tx\tz\tslip")
	for v, val := range vals {
		p := sc.fault.Pts[v]
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.6f\n", v, p[0], p[2], val)
	}
	return tw.Flush()
}
