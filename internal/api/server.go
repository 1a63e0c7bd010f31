// Package api serves analysis results over HTTP.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/store"
	"github.com/fluvial-data/flow.report/internal/units"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes persisted runs and, optionally, the progress of the
// run currently in flight.
type Server struct {
	db    *store.ResultsDB
	live  *store.FieldStore
	units string
}

// NewServer creates a results server. live may be nil when no analysis
// is running in this process. defaultUnits is used when a request does
// not ask for specific units.
func NewServer(db *store.ResultsDB, live *store.FieldStore, defaultUnits string) *Server {
	return &Server{
		db:    db,
		live:  live,
		units: defaultUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/run_stats", s.showRunStats)
	mux.HandleFunc("/api/run_summary", s.showRunSummary)
	mux.HandleFunc("/api/field", s.showField)
	mux.HandleFunc("/api/failures", s.showFailures)
	mux.HandleFunc("/api/progress", s.showProgress)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// apiFloat converts a speed value to its API form: nil for the "no
// data" sentinel, since raw NaN is not representable in JSON.
func apiFloat(v float64) *float64 {
	if flow.IsNoData(v) {
		return nil
	}
	return &v
}

// PairStatsAPI is the JSON shape of one pair's statistics. Sentinel
// speeds become null rather than NaN or zero.
type PairStatsAPI struct {
	PairIndex int      `json:"pair_index"`
	FrameA    int      `json:"frame_a"`
	FrameB    int      `json:"frame_b"`
	AvgSpeed  *float64 `json:"avg_speed"`
	MaxSpeed  *float64 `json:"max_speed"`
	StdSpeed  *float64 `json:"std_speed"`
	Units     string   `json:"units"`
}

// statsToAPI converts stored statistics to the API shape, converting
// units when the stored values are physical. Pixel-unit values pass
// through unchanged: they have no physical conversion.
func statsToAPI(ps flow.PairStats, targetUnits string) PairStatsAPI {
	out := PairStatsAPI{
		PairIndex: ps.PairIndex,
		FrameA:    ps.FrameA,
		FrameB:    ps.FrameB,
		Units:     ps.Units,
	}
	// Conversion only applies to physical values toward a physical
	// target; pixel-unit values (either side) pass through unchanged.
	converting := ps.Units == units.MPS && targetUnits != units.MPS &&
		targetUnits != units.PXF && units.IsValid(targetUnits)
	convert := func(v float64) *float64 {
		if flow.IsNoData(v) {
			return nil
		}
		if converting {
			v = units.ConvertSpeed(v, targetUnits)
		}
		return &v
	}
	if converting {
		out.Units = targetUnits
	}
	out.AvgSpeed = convert(ps.AvgSpeed)
	out.MaxSpeed = convert(ps.MaxSpeed)
	out.StdSpeed = convert(ps.StdSpeed)
	return out
}

// requestUnits resolves the target units for a request, falling back to
// the server default. An invalid value is reported to the caller.
func (s *Server) requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	target := r.URL.Query().Get("units")
	if target == "" {
		return s.units, true
	}
	if !units.IsValid(target) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid units %q, valid values: %s", target, units.GetValidUnitsString()))
		return "", false
	}
	return target, true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runs, err := s.db.ListRuns()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// runFromRequest resolves the run_id query parameter against the
// database, writing the appropriate error response on failure.
func (s *Server) runFromRequest(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return store.Run{}, false
	}
	run, err := s.db.GetRun(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No run %q", runID))
		return store.Run{}, false
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return store.Run{}, false
	}
	return run, true
}

func (s *Server) showRunStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	target, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	run, ok := s.runFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := s.db.RunStats(run.RunID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}

	apiStats := make([]PairStatsAPI, len(stats))
	for i, ps := range stats {
		apiStats[i] = statsToAPI(ps, target)
	}

	if err := json.NewEncoder(w).Encode(apiStats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

// RunSummaryAPI is the JSON shape of a whole run's aggregate. The peak
// pair index is -1 when no pair produced a measurement.
type RunSummaryAPI struct {
	RunID         string   `json:"run_id"`
	PairCount     int      `json:"pair_count"`
	MeasuredPairs int      `json:"measured_pairs"`
	OverallAvg    *float64 `json:"overall_avg"`
	PeakSpeed     *float64 `json:"peak_speed"`
	PeakPairIndex int      `json:"peak_pair_index"`
	MeanStd       *float64 `json:"mean_std"`
	Units         string   `json:"units"`
}

func (s *Server) showRunSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, ok := s.runFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := s.db.RunStats(run.RunID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}

	rs := flow.SummarizeRun(stats)
	out := RunSummaryAPI{
		RunID:         run.RunID,
		PairCount:     rs.PairCount,
		MeasuredPairs: rs.MeasuredPairs,
		OverallAvg:    apiFloat(rs.OverallAvg),
		PeakSpeed:     apiFloat(rs.PeakSpeed),
		PeakPairIndex: rs.PeakPairIndex,
		MeanStd:       apiFloat(rs.MeanStd),
		Units:         rs.Units,
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write summary")
		return
	}
}

// FieldAPI is the JSON shape of one pair's velocity grid. Sentinel
// cells become null.
type FieldAPI struct {
	PairIndex int          `json:"pair_index"`
	FrameA    int          `json:"frame_a"`
	FrameB    int          `json:"frame_b"`
	X         []float64    `json:"x"`
	Y         []float64    `json:"y"`
	Ux        [][]*float64 `json:"ux"`
	Uy        [][]*float64 `json:"uy"`
	Units     string       `json:"units"`
}

func gridToAPI(g *flow.GridFrame) FieldAPI {
	wrap := func(vals [][]float64) [][]*float64 {
		out := make([][]*float64, len(vals))
		for r, row := range vals {
			out[r] = make([]*float64, len(row))
			for c, v := range row {
				out[r][c] = apiFloat(v)
			}
		}
		return out
	}
	return FieldAPI{
		PairIndex: g.PairIndex,
		FrameA:    g.FrameA,
		FrameB:    g.FrameB,
		X:         g.X,
		Y:         g.Y,
		Ux:        wrap(g.Ux),
		Uy:        wrap(g.Uy),
		Units:     g.Units,
	}
}

func (s *Server) showField(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, ok := s.runFromRequest(w, r)
	if !ok {
		return
	}

	pairIndex := 0
	if p := r.URL.Query().Get("pair"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'pair' parameter")
			return
		}
		pairIndex = parsed
	}

	grid, err := s.db.LoadGrid(run.RunID, pairIndex)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("No grid for run %q pair %d", run.RunID, pairIndex))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load grid: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(gridToAPI(grid)); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write grid")
		return
	}
}

func (s *Server) showFailures(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, ok := s.runFromRequest(w, r)
	if !ok {
		return
	}

	failures, err := s.db.RunFailures(run.RunID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve failures: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(failures); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write failures")
		return
	}
}

// ProgressAPI reports how far the in-flight run has gotten.
type ProgressAPI struct {
	RunID    string `json:"run_id"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Failures int    `json:"failures"`
}

func (s *Server) showProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.live == nil {
		s.writeJSONError(w, http.StatusNotFound, "No analysis in progress")
		return
	}

	out := ProgressAPI{
		RunID:    s.live.RunID(),
		Done:     s.live.Len(),
		Total:    s.live.PlanCount(),
		Failures: len(s.live.Failures()),
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write progress")
		return
	}
}
