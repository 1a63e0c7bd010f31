package pipeline

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/roi"
	"github.com/fluvial-data/flow.report/internal/store"
)

// PairTracker produces sparse displacement samples for one frame pair.
// Implementations are used by a single worker at a time; the pool
// creates one per worker via the factory.
type PairTracker interface {
	TrackPair(ctx context.Context, pair flow.FramePair) ([]flow.Sample, error)
	Close() error
}

// TrackerFactory builds one PairTracker per worker. Video decoders are
// not safe for concurrent seeks, so each worker owns its own.
type TrackerFactory func() (PairTracker, error)

// Config holds the dependencies and parameters for one run.
type Config struct {
	Plan flow.PairPlan
	Mask *roi.Mask

	NewTracker TrackerFactory

	Filter flow.FilterParams
	Interp flow.InterpParams

	// Scaling is applied when Enabled; otherwise results stay in
	// pixel/frame units.
	Scaling flow.ScaleParams

	// Workers caps pool size. Zero means GOMAXPROCS.
	Workers int

	// Store receives results in schedule order.
	Store *store.FieldStore

	// OnProgress, when non-nil, is called after every committed or
	// skipped pair with the number of settled pairs and the total.
	OnProgress func(done, total int)
}

// pairResult is one worker's output for a job.
type pairResult struct {
	index int
	grid  *flow.GridFrame
	stats flow.PairStats
	err   error
}

// Run processes every pair of the plan. Per-pair errors (unreadable
// frames, tracker failures) are recorded against the pair's index and
// do not abort the remaining schedule. Cancellation stops dispatching
// new jobs and returns ctx.Err(); the store is left consistent up to
// the last contiguous completed pair.
func Run(ctx context.Context, cfg Config) error {
	total := len(cfg.Plan)
	if total == 0 {
		return fmt.Errorf("pipeline: empty plan")
	}
	if cfg.Store == nil {
		return fmt.Errorf("pipeline: no field store")
	}
	if cfg.NewTracker == nil {
		return fmt.Errorf("pipeline: no tracker factory")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan int)
	results := make(chan pairResult, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, cfg, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for i := range cfg.Plan {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Commit loop: results land in completion order, the store takes
	// them in schedule order. Hold early finishers until their
	// predecessors settle.
	pending := make(map[int]pairResult, workers)
	next := 0
	for r := range results {
		pending[r.index] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if cur.err != nil {
				log.Printf("pair %d (%d,%d): skipped: %v",
					cur.index, cfg.Plan[cur.index].A, cfg.Plan[cur.index].B, cur.err)
				cfg.Store.RecordFailure(cur.index, cur.err)
			} else if err := cfg.Store.Append(cur.grid, cur.stats); err != nil {
				// Unblock any workers still sending before bailing.
				go func() {
					for range results {
					}
				}()
				return fmt.Errorf("pipeline: commit pair %d: %w", cur.index, err)
			}
			next++
			if cfg.OnProgress != nil {
				cfg.OnProgress(next, total)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func worker(ctx context.Context, cfg Config, jobs <-chan int, results chan<- pairResult) {
	tracker, err := cfg.NewTracker()
	if err != nil {
		// Report the construction failure against every job this
		// worker would have taken, so the run degrades instead of
		// hanging.
		for i := range jobs {
			results <- pairResult{index: i, err: fmt.Errorf("tracker setup: %w", err)}
		}
		return
	}
	defer tracker.Close()

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- processPair(ctx, cfg, tracker, i)
	}
}

// processPair runs the per-pair stage chain: track, filter,
// interpolate, optionally scale, summarise.
func processPair(ctx context.Context, cfg Config, tracker PairTracker, index int) pairResult {
	pair := cfg.Plan[index]
	samples, err := tracker.TrackPair(ctx, pair)
	if err != nil {
		return pairResult{index: index, err: err}
	}

	filtered := flow.Filter(samples, cfg.Filter)
	grid := flow.Interpolate(filtered, cfg.Mask, pair, index, cfg.Interp)

	if cfg.Scaling.Enabled() {
		scaled, err := flow.Scale(grid, cfg.Scaling)
		if err != nil {
			return pairResult{index: index, err: err}
		}
		grid = scaled
	}

	return pairResult{index: index, grid: grid, stats: flow.Summarize(grid)}
}
