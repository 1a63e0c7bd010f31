package flow

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summarize computes the speed statistics of one grid frame. Speed at a
// cell is sqrt(Ux^2 + Uy^2); sentinel cells are excluded from the
// included set, never treated as zero. An empty included set yields
// sentinel statistics.
func Summarize(g *GridFrame) PairStats {
	s := PairStats{
		PairIndex: g.PairIndex,
		FrameA:    g.FrameA,
		FrameB:    g.FrameB,
		Units:     g.Units,
	}

	var speeds []float64
	for r := range g.Ux {
		for c := range g.Ux[r] {
			ux, uy := g.Ux[r][c], g.Uy[r][c]
			if IsNoData(ux) || IsNoData(uy) {
				continue
			}
			speeds = append(speeds, math.Hypot(ux, uy))
		}
	}

	if len(speeds) == 0 {
		s.AvgSpeed = NoData()
		s.MaxSpeed = NoData()
		s.StdSpeed = NoData()
		return s
	}

	s.AvgSpeed = stat.Mean(speeds, nil)
	s.StdSpeed = stat.PopStdDev(speeds, nil)
	max := speeds[0]
	for _, v := range speeds[1:] {
		if v > max {
			max = v
		}
	}
	s.MaxSpeed = max
	return s
}

// RunSummary condenses a whole run's per-pair statistics: overall mean
// speed, the peak speed with the pair it occurred in, and the mean
// per-pair variability. Pairs with sentinel statistics are skipped.
type RunSummary struct {
	PairCount     int
	MeasuredPairs int
	OverallAvg    float64
	PeakSpeed     float64
	PeakPairIndex int
	MeanStd       float64
	Units         string
}

// SummarizeRun aggregates per-pair statistics over a full run.
func SummarizeRun(all []PairStats) RunSummary {
	rs := RunSummary{PairCount: len(all), PeakPairIndex: -1}
	var avgs, stds []float64
	for _, ps := range all {
		if IsNoData(ps.AvgSpeed) {
			continue
		}
		rs.Units = ps.Units
		avgs = append(avgs, ps.AvgSpeed)
		stds = append(stds, ps.StdSpeed)
		if rs.PeakPairIndex < 0 || ps.MaxSpeed > rs.PeakSpeed {
			rs.PeakSpeed = ps.MaxSpeed
			rs.PeakPairIndex = ps.PairIndex
		}
	}
	rs.MeasuredPairs = len(avgs)
	if len(avgs) == 0 {
		rs.OverallAvg = NoData()
		rs.PeakSpeed = NoData()
		rs.MeanStd = NoData()
		return rs
	}
	rs.OverallAvg = stat.Mean(avgs, nil)
	rs.MeanStd = stat.Mean(stds, nil)
	return rs
}
