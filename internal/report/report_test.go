package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/units"
)

func sampleStats() []flow.PairStats {
	return []flow.PairStats{
		{PairIndex: 0, FrameA: 0, FrameB: 1, AvgSpeed: 2, MaxSpeed: 4, StdSpeed: 0.5, Units: units.MPS},
		{PairIndex: 1, FrameA: 1, FrameB: 2, AvgSpeed: flow.NoData(), MaxSpeed: flow.NoData(), StdSpeed: flow.NoData(), Units: units.MPS},
		{PairIndex: 2, FrameA: 2, FrameB: 3, AvgSpeed: 3, MaxSpeed: 5, StdSpeed: 0.7, Units: units.MPS},
	}
}

func TestWriteRunHTML(t *testing.T) {
	stats := sampleStats()
	summary := flow.SummarizeRun(stats)

	var buf bytes.Buffer
	if err := WriteRunHTML(&buf, "run-1", summary, stats); err != nil {
		t.Fatalf("WriteRunHTML() = %v, want nil", err)
	}

	html := buf.String()
	for _, want := range []string{"echarts", "Surface Speed per Frame Pair", "m/s", "0-1", "2-3"} {
		if !strings.Contains(html, want) {
			t.Errorf("report HTML missing %q", want)
		}
	}
}

func TestSaveSpeedPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speed.png")
	if err := SaveSpeedPlot(path, sampleStats()); err != nil {
		t.Fatalf("SaveSpeedPlot() = %v, want nil", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestSaveSpeedPlotAllSentinel(t *testing.T) {
	stats := []flow.PairStats{
		{PairIndex: 0, AvgSpeed: flow.NoData(), MaxSpeed: flow.NoData(), StdSpeed: flow.NoData(), Units: units.PXF},
	}
	path := filepath.Join(t.TempDir(), "speed.png")
	if err := SaveSpeedPlot(path, stats); err == nil {
		t.Error("SaveSpeedPlot() with no measured pairs = nil, want error")
	}
}

func TestSaveFieldPlot(t *testing.T) {
	g := &flow.GridFrame{
		PairIndex: 0,
		FrameA:    0,
		FrameB:    1,
		X:         []float64{2.5, 7.5, 12.5},
		Y:         []float64{2.5, 7.5},
		Ux: [][]float64{
			{1, 2, flow.NoData()},
			{3, 4, 5},
		},
		Uy: [][]float64{
			{0, 0, flow.NoData()},
			{1, 1, 1},
		},
		Units: units.PXF,
	}

	path := filepath.Join(t.TempDir(), "field.png")
	if err := SaveFieldPlot(path, g); err != nil {
		t.Fatalf("SaveFieldPlot() = %v, want nil", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("plot file missing or empty: %v", err)
	}
}

func TestSaveFieldPlotAllSentinel(t *testing.T) {
	nd := flow.NoData()
	g := &flow.GridFrame{
		X:     []float64{2.5},
		Y:     []float64{2.5},
		Ux:    [][]float64{{nd}},
		Uy:    [][]float64{{nd}},
		Units: units.PXF,
	}
	if err := SaveFieldPlot(filepath.Join(t.TempDir(), "f.png"), g); err == nil {
		t.Error("SaveFieldPlot() with no measured cells = nil, want error")
	}
}
