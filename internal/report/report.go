// Package report renders analysis results as HTML chart pages and PNG
// plots.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/units"
)

// lineData converts a speed column to chart points, leaving sentinel
// pairs as nil values so the chart shows a gap instead of a zero.
func lineData(stats []flow.PairStats, pick func(flow.PairStats) float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(stats))
	for _, s := range stats {
		v := pick(s)
		if flow.IsNoData(v) {
			out = append(out, opts.LineData{Value: nil})
			continue
		}
		out = append(out, opts.LineData{Value: v})
	}
	return out
}

// WriteRunHTML renders a run's per-pair statistics as an HTML page with
// a speed time-series chart.
func WriteRunHTML(w io.Writer, runID string, summary flow.RunSummary, stats []flow.PairStats) error {
	label := units.Label(summary.Units)

	xAxis := make([]string, 0, len(stats))
	for _, s := range stats {
		xAxis = append(xAxis, fmt.Sprintf("%d-%d", s.FrameA, s.FrameB))
	}

	subtitle := fmt.Sprintf("run=%s pairs=%d/%d", runID, summary.MeasuredPairs, summary.PairCount)
	if !flow.IsNoData(summary.OverallAvg) {
		subtitle += fmt.Sprintf(" avg=%.3f %s peak=%.3f %s (pair %d)",
			summary.OverallAvg, label, summary.PeakSpeed, label, summary.PeakPairIndex)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Surface Flow Report", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Surface Speed per Frame Pair", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame pair"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (" + label + ")"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("mean", lineData(stats, func(s flow.PairStats) float64 { return s.AvgSpeed })).
		AddSeries("max", lineData(stats, func(s flow.PairStats) float64 { return s.MaxSpeed })).
		AddSeries("stddev", lineData(stats, func(s flow.PairStats) float64 { return s.StdSpeed }))

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering run report: %w", err)
	}
	return nil
}
