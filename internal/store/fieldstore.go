// Package store owns the accumulated results of an analysis run: the
// in-memory FieldStore the pipeline appends to, and its SQLite-backed
// persistence.
package store

import (
	"fmt"
	"sync"

	"github.com/fluvial-data/flow.report/internal/flow"
)

// FieldStore is the ordered collection of per-pair velocity grids and
// statistics for one run. It is append-only while a run is in flight
// and replaced wholesale on reprocessing: Reset installs a fresh run
// identity, so partial results of an interrupted run are never visible
// under the identity of a completed one.
type FieldStore struct {
	mu        sync.RWMutex
	runID     string
	planCount int
	grids     []*flow.GridFrame
	stats     []flow.PairStats
	failures  map[int]string
}

// NewFieldStore creates an empty store for a run over planCount pairs.
func NewFieldStore(runID string, planCount int) *FieldStore {
	return &FieldStore{
		runID:     runID,
		planCount: planCount,
		failures:  make(map[int]string),
	}
}

// RunID returns the identity of the run currently held.
func (fs *FieldStore) RunID() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.runID
}

// PlanCount returns the number of pairs the run's plan scheduled.
func (fs *FieldStore) PlanCount() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.planCount
}

// Append stores the result of one pair. Results must arrive in
// schedule order: the pipeline serialises commits by pair index even
// when workers complete out of order.
func (fs *FieldStore) Append(g *flow.GridFrame, s flow.PairStats) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n := len(fs.grids); n > 0 && g.PairIndex <= fs.grids[n-1].PairIndex {
		return fmt.Errorf("store: pair %d appended after pair %d", g.PairIndex, fs.grids[n-1].PairIndex)
	}
	fs.grids = append(fs.grids, g)
	fs.stats = append(fs.stats, s)
	return nil
}

// RecordFailure notes a pair that was skipped with a per-pair error.
// Failed pairs hold no grid; they are reported alongside results so
// exports can distinguish "skipped" from "measured, empty".
func (fs *FieldStore) RecordFailure(pairIndex int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failures[pairIndex] = err.Error()
}

// Len returns the number of stored results.
func (fs *FieldStore) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.grids)
}

// Get returns the i-th stored result in schedule order.
func (fs *FieldStore) Get(i int) (*flow.GridFrame, flow.PairStats, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if i < 0 || i >= len(fs.grids) {
		return nil, flow.PairStats{}, false
	}
	return fs.grids[i], fs.stats[i], true
}

// Grids returns the stored grids in schedule order. The slice is a
// copy; the grids themselves are immutable by contract.
func (fs *FieldStore) Grids() []*flow.GridFrame {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return append([]*flow.GridFrame(nil), fs.grids...)
}

// Stats returns the per-pair statistics in schedule order.
func (fs *FieldStore) Stats() []flow.PairStats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return append([]flow.PairStats(nil), fs.stats...)
}

// Failures returns the per-pair errors recorded for skipped pairs,
// keyed by pair index.
func (fs *FieldStore) Failures() map[int]string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make(map[int]string, len(fs.failures))
	for k, v := range fs.failures {
		out[k] = v
	}
	return out
}

// Reset atomically clears the store and installs a new run identity
// for reprocessing.
func (fs *FieldStore) Reset(runID string, planCount int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.runID = runID
	fs.planCount = planCount
	fs.grids = nil
	fs.stats = nil
	fs.failures = make(map[int]string)
}
