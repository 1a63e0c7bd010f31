package flow

import "math"

// NoData is the sentinel marking absence of a valid measurement.
// It is NaN so that arithmetic never silently folds missing cells into
// real statistics; use IsNoData to test for it.
func NoData() float64 { return math.NaN() }

// IsNoData reports whether v is the "no data" sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Sample is one sparse displacement measurement: a tracked feature at
// (X, Y) in frame A that moved by (DX, DY) pixels to frame B. Conf is
// the tracker's round-trip consistency score in [0, 1], higher is
// better.
type Sample struct {
	X    float64
	Y    float64
	DX   float64
	DY   float64
	Conf float64
}

// Speed returns the sample's displacement magnitude in pixels per
// frame, given the frame gap of the pair it was measured over.
func (s Sample) Speed(frameGap int) float64 {
	if frameGap < 1 {
		frameGap = 1
	}
	return math.Hypot(s.DX, s.DY) / float64(frameGap)
}

// GridFrame is a dense velocity field on a regular grid for one frame
// pair. X and Y hold the cell-centre coordinates of the columns and
// rows; Ux[row][col] and Uy[row][col] hold the velocity components.
// Cells outside the ROI or without nearby samples hold the NoData
// sentinel. A GridFrame is immutable once produced; Scale returns a
// copy rather than modifying in place.
type GridFrame struct {
	PairIndex int
	FrameA    int
	FrameB    int
	X         []float64
	Y         []float64
	Ux        [][]float64
	Uy        [][]float64
	Units     string
}

// Rows returns the number of grid rows.
func (g *GridFrame) Rows() int { return len(g.Y) }

// Cols returns the number of grid columns.
func (g *GridFrame) Cols() int { return len(g.X) }

// Clone returns a deep copy of the grid.
func (g *GridFrame) Clone() *GridFrame {
	c := &GridFrame{
		PairIndex: g.PairIndex,
		FrameA:    g.FrameA,
		FrameB:    g.FrameB,
		X:         append([]float64(nil), g.X...),
		Y:         append([]float64(nil), g.Y...),
		Ux:        make([][]float64, len(g.Ux)),
		Uy:        make([][]float64, len(g.Uy)),
		Units:     g.Units,
	}
	for r := range g.Ux {
		c.Ux[r] = append([]float64(nil), g.Ux[r]...)
		c.Uy[r] = append([]float64(nil), g.Uy[r]...)
	}
	return c
}

// PairStats summarises the speed distribution of one grid frame.
// For a fully-masked or fully-rejected pair all three statistics are
// the NoData sentinel; that is a valid outcome, not an error.
type PairStats struct {
	PairIndex int
	FrameA    int
	FrameB    int
	AvgSpeed  float64
	MaxSpeed  float64
	StdSpeed  float64
	Units     string
}
