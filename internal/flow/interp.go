package flow

import (
	"math"

	"github.com/fluvial-data/flow.report/internal/roi"
	"github.com/fluvial-data/flow.report/internal/units"
)

// InterpParams controls sparse-to-grid interpolation.
type InterpParams struct {
	// CellSize is the grid spacing in pixels. Grid dimensions are a
	// function of frame size and CellSize only, so every pair of a
	// plan produces directly comparable arrays.
	CellSize float64

	// Radius bounds the neighbourhood of samples contributing to a
	// cell. Defaults should match the filter radius so both stages
	// share one length scale, but the two are configured
	// independently.
	Radius float64

	// Sharpness divides Radius to give the Gaussian kernel width:
	// sigma = Radius / Sharpness. Larger values weight close samples
	// more strongly.
	Sharpness float64

	// FrameGap is the number of frames between the pair's two images;
	// raw pixel displacements are divided by it so grid velocities
	// are in pixels per frame.
	FrameGap int
}

// Interpolate builds a dense velocity grid from filtered displacement
// samples. Each in-mask cell takes the Gaussian-weighted mean of the
// samples within Radius of its centre. Cells outside the mask, and
// cells with no samples in range, hold the NoData sentinel.
func Interpolate(samples []Sample, mask *roi.Mask, pair FramePair, pairIndex int, p InterpParams) *GridFrame {
	cell := p.CellSize
	if cell <= 0 {
		cell = 1
	}
	gap := p.FrameGap
	if gap < 1 {
		gap = 1
	}
	sigma := p.Radius
	if p.Sharpness > 0 {
		sigma = p.Radius / p.Sharpness
	}
	if sigma <= 0 {
		sigma = 1
	}

	cols := int(math.Ceil(float64(mask.Width()) / cell))
	rows := int(math.Ceil(float64(mask.Height()) / cell))

	g := &GridFrame{
		PairIndex: pairIndex,
		FrameA:    pair.A,
		FrameB:    pair.B,
		X:         make([]float64, cols),
		Y:         make([]float64, rows),
		Ux:        make([][]float64, rows),
		Uy:        make([][]float64, rows),
		Units:     units.PXF,
	}
	for c := 0; c < cols; c++ {
		g.X[c] = (float64(c) + 0.5) * cell
	}
	for r := 0; r < rows; r++ {
		g.Y[r] = (float64(r) + 0.5) * cell
		g.Ux[r] = make([]float64, cols)
		g.Uy[r] = make([]float64, cols)
	}

	idx := newBucketIndex(samples, p.Radius)

	for r := 0; r < rows; r++ {
		cy := g.Y[r]
		for c := 0; c < cols; c++ {
			cx := g.X[c]
			if !mask.At(int(cx), int(cy)) {
				g.Ux[r][c] = NoData()
				g.Uy[r][c] = NoData()
				continue
			}

			var wSum, uxSum, uySum float64
			idx.within(cx, cy, p.Radius, func(i int, d float64) {
				w := math.Exp(-(d * d) / (2 * sigma * sigma))
				wSum += w
				uxSum += w * samples[i].DX
				uySum += w * samples[i].DY
			})
			if wSum == 0 {
				g.Ux[r][c] = NoData()
				g.Uy[r][c] = NoData()
				continue
			}
			g.Ux[r][c] = uxSum / wSum / float64(gap)
			g.Uy[r][c] = uySum / wSum / float64(gap)
		}
	}
	return g
}
