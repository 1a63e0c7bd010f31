package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fluvial-data/flow.report/internal/api"
	"github.com/fluvial-data/flow.report/internal/config"
	"github.com/fluvial-data/flow.report/internal/export"
	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/flow/track"
	"github.com/fluvial-data/flow.report/internal/pipeline"
	"github.com/fluvial-data/flow.report/internal/report"
	"github.com/fluvial-data/flow.report/internal/roi"
	"github.com/fluvial-data/flow.report/internal/store"
	"github.com/fluvial-data/flow.report/internal/units"
	"github.com/fluvial-data/flow.report/internal/video"
)

var (
	videoPath  = flag.String("video", "", "Video file to analyse (omit to only serve existing results)")
	maskPath   = flag.String("mask", "", "JSON polygon file restricting analysis to a region")
	configPath = flag.String("config", "", "JSON analysis parameter file")
	dbFile     = flag.String("db", "flow_results.db", "Results database file")
	outDir     = flag.String("out", "", "Directory for CSV/JSON exports and report files")
	unitsFlag  = flag.String("units", units.MPS, "Display units for served results: "+units.GetValidUnitsString())
	listen     = flag.String("listen", "", "Listen address for the results API (empty to skip serving)")
	workers    = flag.Int("workers", 0, "Worker pool size (0 = number of CPUs)")
)

func main() {
	flag.Parse()

	if !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q, valid values: %s", *unitsFlag, units.GetValidUnitsString())
	}
	if *videoPath == "" && *listen == "" {
		log.Fatal("nothing to do: provide -video to analyse or -listen to serve results")
	}

	cfg := config.EmptyAnalysisConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	db, err := store.OpenResults(*dbFile)
	if err != nil {
		log.Fatalf("failed to open results database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var live *store.FieldStore
	if *videoPath != "" {
		live, err = analyse(ctx, cfg, db)
		if err != nil {
			log.Fatalf("analysis failed: %v", err)
		}
	}

	if *listen != "" {
		serveResults(ctx, db, live)
	}
}

// analyse runs the full extraction pipeline over the configured video
// and persists the results. The returned store holds the run's results
// in memory for the API's progress and live views.
func analyse(ctx context.Context, cfg *config.AnalysisConfig, db *store.ResultsDB) (*store.FieldStore, error) {
	stream, err := video.NewFileStream(*videoPath)
	if err != nil {
		return nil, err
	}
	width, height := stream.Width(), stream.Height()
	fps := stream.Fps()
	frameCount := stream.FrameCount()
	scaling := cfg.ScaleParams(fps)
	if err := stream.Close(); err != nil {
		return nil, err
	}

	mask := roi.FullFrame(width, height)
	if *maskPath != "" {
		mask, err = roi.LoadPolygonFile(*maskPath, width, height)
		if err != nil {
			return nil, fmt.Errorf("loading mask: %w", err)
		}
	}
	log.Printf("video %s: %dx%d, %d frames at %.2f fps, mask covers %d px",
		*videoPath, width, height, frameCount, fps, mask.Area())

	plan, err := flow.PlanPairs(cfg.GetStartingFrame(), cfg.GetStep(), cfg.GetShift(), cfg.GetTotalPairs(), frameCount)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	fieldStore := store.NewFieldStore(runID, len(plan))
	trackParams := cfg.TrackParams()

	start := time.Now()
	pipeErr := pipeline.Run(ctx, pipeline.Config{
		Plan: plan,
		Mask: mask,
		NewTracker: func() (pipeline.PairTracker, error) {
			return track.NewVideoTracker(*videoPath, trackParams, mask)
		},
		Filter:  cfg.FilterParams(),
		Interp:  cfg.InterpParams(),
		Scaling: scaling,
		Workers: *workers,
		Store:   fieldStore,
		OnProgress: func(done, total int) {
			log.Printf("pair %d/%d settled", done, total)
		},
	})
	if pipeErr != nil && !errors.Is(pipeErr, context.Canceled) {
		return nil, pipeErr
	}
	log.Printf("run %s: %d/%d pairs in %v (%d failed)",
		runID, fieldStore.Len(), len(plan), time.Since(start).Round(time.Millisecond), len(fieldStore.Failures()))

	paramsJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding run parameters: %w", err)
	}
	runUnits := units.PXF
	if scaling.Enabled() {
		runUnits = units.MPS
	}
	run := store.Run{
		RunID:      runID,
		VideoPath:  *videoPath,
		CreatedAt:  time.Now(),
		ParamsJSON: string(paramsJSON),
		PairCount:  len(plan),
		Units:      runUnits,
	}
	if err := db.SaveRun(run, fieldStore); err != nil {
		return nil, fmt.Errorf("persisting run: %w", err)
	}
	log.Printf("run %s saved to %s", runID, *dbFile)

	if *outDir != "" {
		if err := writeOutputs(fieldStore, runID, fps); err != nil {
			return nil, err
		}
	}
	if pipeErr != nil {
		log.Printf("analysis interrupted: %v", pipeErr)
	}
	return fieldStore, nil
}

// writeOutputs drops the run's exports and report files into the
// output directory.
func writeOutputs(fs *store.FieldStore, runID string, fps float64) error {
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	stats := fs.Stats()
	grids := fs.Grids()
	summary := flow.SummarizeRun(stats)

	writeFile := func(name string, write func(f *os.File) error) error {
		path := filepath.Join(*outDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		if err := write(f); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
		return nil
	}

	if err := writeFile("stats.csv", func(f *os.File) error {
		return export.WriteStatsCSV(f, stats)
	}); err != nil {
		return err
	}
	if err := writeFile("stats.json", func(f *os.File) error {
		return export.WriteStatsJSON(f, stats)
	}); err != nil {
		return err
	}

	if len(grids) > 0 {
		if err := writeFile("field.json", func(f *os.File) error {
			return export.WriteFieldJSON(f, grids, fps)
		}); err != nil {
			return err
		}
		if err := writeFile("field_first_pair.csv", func(f *os.File) error {
			return export.WriteFieldCSV(f, grids[0])
		}); err != nil {
			return err
		}
	}

	if err := writeFile("report.html", func(f *os.File) error {
		return report.WriteRunHTML(f, runID, summary, stats)
	}); err != nil {
		return err
	}

	// Plots need at least one measured pair; skip them otherwise.
	if summary.MeasuredPairs > 0 {
		if err := report.SaveSpeedPlot(filepath.Join(*outDir, "speed.png"), stats); err != nil {
			log.Printf("speed plot skipped: %v", err)
		}
		if err := report.SaveFieldPlot(filepath.Join(*outDir, "field.png"), grids[0]); err != nil {
			log.Printf("field plot skipped: %v", err)
		}
	}
	return nil
}

// serveResults runs the results API until the process is signalled.
func serveResults(ctx context.Context, db *store.ResultsDB, live *store.FieldStore) {
	mux := api.NewServer(db, live, *unitsFlag).ServeMux()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("serving results on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
