package testutil

import (
	"testing"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/units"
)

func TestAssertInDelta(t *testing.T) {
	AssertInDelta(t, 1.05, 1.0, 0.1)
}

func TestAssertNoData(t *testing.T) {
	AssertNoData(t, flow.NoData())
}

func TestUniformGrid(t *testing.T) {
	g := UniformGrid(3, 6, 8, 2, 4, 1.5, -0.5, units.PXF)

	if got, want := g.Rows(), 2; got != want {
		t.Errorf("Rows() = %d, want %d", got, want)
	}
	if got, want := g.Cols(), 4; got != want {
		t.Errorf("Cols() = %d, want %d", got, want)
	}
	if got, want := g.PairIndex, 3; got != want {
		t.Errorf("PairIndex = %d, want %d", got, want)
	}
	if got, want := g.X[1], 7.5; got != want {
		t.Errorf("X[1] = %v, want %v", got, want)
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.Ux[r][c] != 1.5 || g.Uy[r][c] != -0.5 {
				t.Fatalf("cell (%d,%d) = (%v,%v), want (1.5,-0.5)", r, c, g.Ux[r][c], g.Uy[r][c])
			}
		}
	}

	stats := flow.Summarize(g)
	AssertInDelta(t, stats.MaxSpeed, stats.AvgSpeed, 1e-12)
}
