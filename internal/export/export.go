// Package export writes analysis results as CSV tables and JSON
// documents for downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fluvial-data/flow.report/internal/flow"
)

// formatCell renders a grid value for CSV output. The "no data"
// sentinel becomes an empty field so spreadsheet tools read it as
// missing rather than zero.
func formatCell(v float64) string {
	if flow.IsNoData(v) {
		return ""
	}
	return fmt.Sprintf("%.6f", v)
}

// WriteFieldCSV writes one velocity grid as a tabular CSV with a row
// per cell.
func WriteFieldCSV(w io.Writer, g *flow.GridFrame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "ux_" + g.Units, "uy_" + g.Units}); err != nil {
		return fmt.Errorf("writing field CSV header: %w", err)
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			row := []string{
				fmt.Sprintf("%.3f", g.X[c]),
				fmt.Sprintf("%.3f", g.Y[r]),
				formatCell(g.Ux[r][c]),
				formatCell(g.Uy[r][c]),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing field CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatsCSV writes the per-pair statistics time series as CSV.
func WriteStatsCSV(w io.Writer, stats []flow.PairStats) error {
	cw := csv.NewWriter(w)
	header := []string{"pair_index", "frame_a", "frame_b", "avg_speed", "max_speed", "std_speed", "units"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing stats CSV header: %w", err)
	}
	for _, s := range stats {
		row := []string{
			fmt.Sprintf("%d", s.PairIndex),
			fmt.Sprintf("%d", s.FrameA),
			fmt.Sprintf("%d", s.FrameB),
			formatCell(s.AvgSpeed),
			formatCell(s.MaxSpeed),
			formatCell(s.StdSpeed),
			s.Units,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing stats CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// nullable is a float64 that marshals the "no data" sentinel as JSON
// null instead of failing on NaN.
type nullable float64

func (n nullable) MarshalJSON() ([]byte, error) {
	if flow.IsNoData(float64(n)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

func wrapGrid(g [][]float64) [][]nullable {
	out := make([][]nullable, len(g))
	for r, row := range g {
		out[r] = make([]nullable, len(row))
		for c, v := range row {
			out[r][c] = nullable(v)
		}
	}
	return out
}

// FieldSeries is the hierarchical JSON layout for a run's velocity
// grids: shared axes plus one grid per processed frame pair.
type FieldSeries struct {
	Units string         `json:"units"`
	T     []float64      `json:"t"`
	X     []float64      `json:"x"`
	Y     []float64      `json:"y"`
	Ux    [][][]nullable `json:"ux"`
	Uy    [][][]nullable `json:"uy"`
}

// BuildFieldSeries stacks a run's grids into a FieldSeries. The time
// axis is the midpoint of each frame pair in seconds when fps > 0,
// otherwise in frames. All grids must share axes; grids from one run
// always do.
func BuildFieldSeries(grids []*flow.GridFrame, fps float64) (*FieldSeries, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("no grids to export")
	}
	first := grids[0]
	fs := &FieldSeries{
		Units: first.Units,
		T:     make([]float64, 0, len(grids)),
		X:     first.X,
		Y:     first.Y,
	}
	for _, g := range grids {
		if g.Rows() != first.Rows() || g.Cols() != first.Cols() {
			return nil, fmt.Errorf("grid for pair %d has shape %dx%d, want %dx%d",
				g.PairIndex, g.Rows(), g.Cols(), first.Rows(), first.Cols())
		}
		t := float64(g.FrameA+g.FrameB) / 2
		if fps > 0 {
			t /= fps
		}
		fs.T = append(fs.T, t)
		fs.Ux = append(fs.Ux, wrapGrid(g.Ux))
		fs.Uy = append(fs.Uy, wrapGrid(g.Uy))
	}
	return fs, nil
}

// WriteFieldJSON writes the stacked grids of a run as one JSON
// document.
func WriteFieldJSON(w io.Writer, grids []*flow.GridFrame, fps float64) error {
	fs, err := BuildFieldSeries(grids, fps)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fs)
}

// statsDoc is the JSON layout for the per-pair statistics series.
type statsDoc struct {
	Units     string     `json:"units"`
	PairIndex []int      `json:"pair_index"`
	FrameA    []int      `json:"frame_a"`
	FrameB    []int      `json:"frame_b"`
	AvgSpeed  []nullable `json:"avg_speed"`
	MaxSpeed  []nullable `json:"max_speed"`
	StdSpeed  []nullable `json:"std_speed"`
}

// WriteStatsJSON writes the per-pair statistics time series as JSON
// arrays, one per column.
func WriteStatsJSON(w io.Writer, stats []flow.PairStats) error {
	doc := statsDoc{}
	for _, s := range stats {
		doc.Units = s.Units
		doc.PairIndex = append(doc.PairIndex, s.PairIndex)
		doc.FrameA = append(doc.FrameA, s.FrameA)
		doc.FrameB = append(doc.FrameB, s.FrameB)
		doc.AvgSpeed = append(doc.AvgSpeed, nullable(s.AvgSpeed))
		doc.MaxSpeed = append(doc.MaxSpeed, nullable(s.MaxSpeed))
		doc.StdSpeed = append(doc.StdSpeed, nullable(s.StdSpeed))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
