package flow

import (
	"math"
	"testing"

	"github.com/fluvial-data/flow.report/internal/units"
)

func TestSummarize(t *testing.T) {
	g := &GridFrame{
		PairIndex: 1,
		FrameA:    1,
		FrameB:    2,
		X:         []float64{2.5, 7.5},
		Y:         []float64{2.5, 7.5},
		Ux:        [][]float64{{3, 0}, {NoData(), 4}},
		Uy:        [][]float64{{4, 0}, {NoData(), 3}},
		Units:     units.PXF,
	}

	s := Summarize(g)
	if s.PairIndex != 1 || s.FrameA != 1 || s.FrameB != 2 {
		t.Errorf("identity fields not carried: %+v", s)
	}
	// Included speeds: 5, 0, 5. Sentinel cell excluded, not zeroed.
	if math.Abs(s.AvgSpeed-10.0/3.0) > 1e-12 {
		t.Errorf("AvgSpeed = %v, want %v", s.AvgSpeed, 10.0/3.0)
	}
	if s.MaxSpeed != 5 {
		t.Errorf("MaxSpeed = %v, want 5", s.MaxSpeed)
	}
	// Population std of {5, 0, 5}.
	wantStd := math.Sqrt((2*math.Pow(5-10.0/3.0, 2) + math.Pow(0-10.0/3.0, 2)) / 3)
	if math.Abs(s.StdSpeed-wantStd) > 1e-12 {
		t.Errorf("StdSpeed = %v, want %v", s.StdSpeed, wantStd)
	}
}

func TestSummarizeAllSentinel(t *testing.T) {
	g := &GridFrame{
		X:  []float64{2.5},
		Y:  []float64{2.5},
		Ux: [][]float64{{NoData()}},
		Uy: [][]float64{{NoData()}},
	}
	s := Summarize(g)
	if !IsNoData(s.AvgSpeed) || !IsNoData(s.MaxSpeed) || !IsNoData(s.StdSpeed) {
		t.Errorf("all-sentinel grid must yield sentinel statistics, got %+v", s)
	}
}

func TestSummarizeZeroIsNotSentinel(t *testing.T) {
	g := &GridFrame{
		X:  []float64{2.5},
		Y:  []float64{2.5},
		Ux: [][]float64{{0}},
		Uy: [][]float64{{0}},
	}
	s := Summarize(g)
	if IsNoData(s.AvgSpeed) {
		t.Fatal("a measured zero speed must not be reported as no-data")
	}
	if s.AvgSpeed != 0 || s.MaxSpeed != 0 || s.StdSpeed != 0 {
		t.Errorf("stationary grid stats = %+v, want zeros", s)
	}
}

func TestSummarizeRun(t *testing.T) {
	all := []PairStats{
		{PairIndex: 0, AvgSpeed: 2, MaxSpeed: 4, StdSpeed: 0.5, Units: units.PXF},
		{PairIndex: 1, AvgSpeed: NoData(), MaxSpeed: NoData(), StdSpeed: NoData()},
		{PairIndex: 2, AvgSpeed: 4, MaxSpeed: 10, StdSpeed: 1.5, Units: units.PXF},
	}
	rs := SummarizeRun(all)
	if rs.PairCount != 3 || rs.MeasuredPairs != 2 {
		t.Errorf("counts = %d/%d, want 3/2", rs.PairCount, rs.MeasuredPairs)
	}
	if rs.OverallAvg != 3 {
		t.Errorf("OverallAvg = %v, want 3", rs.OverallAvg)
	}
	if rs.PeakSpeed != 10 || rs.PeakPairIndex != 2 {
		t.Errorf("peak = %v at %d, want 10 at 2", rs.PeakSpeed, rs.PeakPairIndex)
	}
	if rs.MeanStd != 1 {
		t.Errorf("MeanStd = %v, want 1", rs.MeanStd)
	}
}

func TestSummarizeRunAllSentinel(t *testing.T) {
	rs := SummarizeRun([]PairStats{{AvgSpeed: NoData()}, {AvgSpeed: NoData()}})
	if rs.MeasuredPairs != 0 {
		t.Errorf("MeasuredPairs = %d, want 0", rs.MeasuredPairs)
	}
	if !IsNoData(rs.OverallAvg) || !IsNoData(rs.PeakSpeed) {
		t.Error("run over sentinel pairs must summarise to sentinel")
	}
}
