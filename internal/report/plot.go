package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/units"
)

// SaveSpeedPlot writes a PNG line plot of the per-pair mean and max
// speed series. Sentinel pairs leave gaps rather than dropping to zero.
func SaveSpeedPlot(path string, stats []flow.PairStats) error {
	p := plot.New()
	p.Title.Text = "Surface Speed per Frame Pair"
	p.X.Label.Text = "Pair index"

	label := units.Label(units.PXF)
	avgPts := make(plotter.XYs, 0, len(stats))
	maxPts := make(plotter.XYs, 0, len(stats))
	for _, s := range stats {
		if flow.IsNoData(s.AvgSpeed) {
			continue
		}
		label = units.Label(s.Units)
		avgPts = append(avgPts, plotter.XY{X: float64(s.PairIndex), Y: s.AvgSpeed})
		maxPts = append(maxPts, plotter.XY{X: float64(s.PairIndex), Y: s.MaxSpeed})
	}
	p.Y.Label.Text = "Speed (" + label + ")"

	if len(avgPts) == 0 {
		return fmt.Errorf("no measured pairs to plot")
	}

	avgLine, err := plotter.NewLine(avgPts)
	if err != nil {
		return fmt.Errorf("building mean line: %w", err)
	}
	avgLine.Width = vg.Points(1)
	p.Add(avgLine)
	p.Legend.Add("mean", avgLine)

	maxLine, err := plotter.NewLine(maxPts)
	if err != nil {
		return fmt.Errorf("building max line: %w", err)
	}
	maxLine.Width = vg.Points(1)
	maxLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(maxLine)
	p.Legend.Add("max", maxLine)

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save speed plot: %w", err)
	}
	return nil
}

// speedGrid adapts a velocity grid's speed magnitudes to the heat map
// plotter. Sentinel cells come through as NaN, which the plotter leaves
// blank.
type speedGrid struct {
	g *flow.GridFrame
}

func (s speedGrid) Dims() (c, r int) { return s.g.Cols(), s.g.Rows() }
func (s speedGrid) X(c int) float64  { return s.g.X[c] }
func (s speedGrid) Y(r int) float64  { return s.g.Y[r] }

func (s speedGrid) Z(c, r int) float64 {
	ux, uy := s.g.Ux[r][c], s.g.Uy[r][c]
	if flow.IsNoData(ux) || flow.IsNoData(uy) {
		return math.NaN()
	}
	return math.Hypot(ux, uy)
}

// SaveFieldPlot writes a PNG heat map of one grid frame's speed
// magnitude.
func SaveFieldPlot(path string, g *flow.GridFrame) error {
	if g.Rows() == 0 || g.Cols() == 0 {
		return fmt.Errorf("empty grid for pair %d", g.PairIndex)
	}

	sg := speedGrid{g: g}
	hm := plotter.NewHeatMap(sg, palette.Heat(16, 1))

	// Recompute the palette range over measured cells only so a
	// sentinel-heavy grid still scales sensibly.
	min, max := math.Inf(1), math.Inf(-1)
	cols, rows := sg.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := sg.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if min > max {
		return fmt.Errorf("no measured cells to plot for pair %d", g.PairIndex)
	}
	if min == max {
		max = min + 1
	}
	hm.Min, hm.Max = min, max

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Speed Field, Frames %d-%d (%s)", g.FrameA, g.FrameB, units.Label(g.Units))
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save field plot: %w", err)
	}
	return nil
}
