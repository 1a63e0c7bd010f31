package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/store"
	"github.com/fluvial-data/flow.report/internal/units"
)

func setupTestServer(t *testing.T) (*Server, *store.ResultsDB) {
	t.Helper()

	db, err := store.OpenResults(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("opening results db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewServer(db, nil, units.MPS), db
}

func testGrid(pairIndex, frameA, frameB int) *flow.GridFrame {
	return &flow.GridFrame{
		PairIndex: pairIndex,
		FrameA:    frameA,
		FrameB:    frameB,
		X:         []float64{2.5, 7.5},
		Y:         []float64{2.5},
		Ux:        [][]float64{{1, flow.NoData()}},
		Uy:        [][]float64{{0.5, flow.NoData()}},
		Units:     units.MPS,
	}
}

func seedRun(t *testing.T, db *store.ResultsDB, runID string) {
	t.Helper()

	fs := store.NewFieldStore(runID, 3)
	for i := 0; i < 2; i++ {
		g := testGrid(i, i, i+1)
		s := flow.PairStats{
			PairIndex: i,
			FrameA:    i,
			FrameB:    i + 1,
			AvgSpeed:  float64(i + 1),
			MaxSpeed:  float64(i + 2),
			StdSpeed:  0.5,
			Units:     units.MPS,
		}
		if err := fs.Append(g, s); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	fs.RecordFailure(2, fmt.Errorf("frame read failed"))

	run := store.Run{
		RunID:     runID,
		VideoPath: "clip.mp4",
		PairCount: 3,
		Units:     units.MPS,
	}
	if err := db.SaveRun(run, fs); err != nil {
		t.Fatalf("saving run: %v", err)
	}
}

func TestListRuns(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")
	seedRun(t, db, "run-2")

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	w := httptest.NewRecorder()
	server.listRuns(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var runs []store.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestListRunsMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	server.listRuns(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestShowRunStats(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/run_stats?run_id=run-1", nil)
	w := httptest.NewRecorder()
	server.showRunStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats []PairStatsAPI
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 stats rows, got %d", len(stats))
	}
	if stats[0].AvgSpeed == nil || *stats[0].AvgSpeed != 1 {
		t.Errorf("avg_speed = %v, want 1", stats[0].AvgSpeed)
	}
	if stats[0].Units != units.MPS {
		t.Errorf("units = %q, want %q", stats[0].Units, units.MPS)
	}
}

func TestShowRunStatsUnitConversion(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/run_stats?run_id=run-1&units=kmph", nil)
	w := httptest.NewRecorder()
	server.showRunStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats []PairStatsAPI
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	// 1 m/s -> 3.6 km/h
	if stats[0].AvgSpeed == nil || *stats[0].AvgSpeed != 3.6 {
		t.Errorf("avg_speed = %v, want 3.6", stats[0].AvgSpeed)
	}
	if stats[0].Units != units.KMPH {
		t.Errorf("units = %q, want %q", stats[0].Units, units.KMPH)
	}
}

func TestShowRunStatsInvalidUnits(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/run_stats?run_id=run-1&units=furlongs", nil)
	w := httptest.NewRecorder()
	server.showRunStats(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestShowRunStatsUnknownRun(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/run_stats?run_id=missing", nil)
	w := httptest.NewRecorder()
	server.showRunStats(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestShowRunSummary(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/run_summary?run_id=run-1", nil)
	w := httptest.NewRecorder()
	server.showRunSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary RunSummaryAPI
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if summary.MeasuredPairs != 2 {
		t.Errorf("measured_pairs = %d, want 2", summary.MeasuredPairs)
	}
	if summary.OverallAvg == nil || *summary.OverallAvg != 1.5 {
		t.Errorf("overall_avg = %v, want 1.5", summary.OverallAvg)
	}
	if summary.PeakPairIndex != 1 {
		t.Errorf("peak_pair_index = %d, want 1", summary.PeakPairIndex)
	}
}

func TestShowField(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/field?run_id=run-1&pair=1", nil)
	w := httptest.NewRecorder()
	server.showField(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var field FieldAPI
	if err := json.NewDecoder(w.Body).Decode(&field); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if field.PairIndex != 1 {
		t.Errorf("pair_index = %d, want 1", field.PairIndex)
	}
	if field.Ux[0][0] == nil || *field.Ux[0][0] != 1 {
		t.Errorf("ux[0][0] = %v, want 1", field.Ux[0][0])
	}
	// Sentinel cells come back as null, not zero.
	if field.Ux[0][1] != nil {
		t.Errorf("ux[0][1] = %v, want null", *field.Ux[0][1])
	}
}

func TestShowFieldMissingPair(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/field?run_id=run-1&pair=9", nil)
	w := httptest.NewRecorder()
	server.showField(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestShowFailures(t *testing.T) {
	server, db := setupTestServer(t)
	seedRun(t, db, "run-1")

	req := httptest.NewRequest(http.MethodGet, "/api/failures?run_id=run-1", nil)
	w := httptest.NewRecorder()
	server.showFailures(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var failures map[int]string
	if err := json.NewDecoder(w.Body).Decode(&failures); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(failures))
	}
	if failures[2] != "frame read failed" {
		t.Errorf("failure message = %q, want %q", failures[2], "frame read failed")
	}
}

func TestShowProgressNoLiveRun(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	w := httptest.NewRecorder()
	server.showProgress(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestShowProgressLiveRun(t *testing.T) {
	_, db := setupTestServer(t)

	live := store.NewFieldStore("run-live", 10)
	g := testGrid(0, 0, 1)
	if err := live.Append(g, flow.PairStats{PairIndex: 0, Units: units.MPS}); err != nil {
		t.Fatalf("seeding live store: %v", err)
	}
	live.RecordFailure(1, fmt.Errorf("tracker error"))

	server := NewServer(db, live, units.MPS)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	w := httptest.NewRecorder()
	server.showProgress(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var progress ProgressAPI
	if err := json.NewDecoder(w.Body).Decode(&progress); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if progress.RunID != "run-live" {
		t.Errorf("run_id = %q, want %q", progress.RunID, "run-live")
	}
	if progress.Done != 1 || progress.Total != 10 || progress.Failures != 1 {
		t.Errorf("progress = %+v, want done=1 total=10 failures=1", progress)
	}
}
