// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/fluvial-data/flow.report/internal/flow"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta checks that got is within delta of want. A "no data"
// sentinel on either side fails: sentinel values never compare close.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	if flow.IsNoData(got) || flow.IsNoData(want) {
		t.Errorf("got %v, want %v ± %v", got, want, delta)
		return
	}
	if math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v ± %v", got, want, delta)
	}
}

// AssertNoData checks that v is the "no data" sentinel.
func AssertNoData(t *testing.T, v float64) {
	t.Helper()
	if !flow.IsNoData(v) {
		t.Errorf("got %v, want no-data sentinel", v)
	}
}

// UniformGrid builds a rows x cols grid frame with every cell set to
// the given velocity components, for tests that need a measured field.
func UniformGrid(pairIndex, frameA, frameB, rows, cols int, ux, uy float64, unitLabel string) *flow.GridFrame {
	g := &flow.GridFrame{
		PairIndex: pairIndex,
		FrameA:    frameA,
		FrameB:    frameB,
		X:         make([]float64, cols),
		Y:         make([]float64, rows),
		Ux:        make([][]float64, rows),
		Uy:        make([][]float64, rows),
		Units:     unitLabel,
	}
	for c := 0; c < cols; c++ {
		g.X[c] = float64(c)*5 + 2.5
	}
	for r := 0; r < rows; r++ {
		g.Y[r] = float64(r)*5 + 2.5
		g.Ux[r] = make([]float64, cols)
		g.Uy[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			g.Ux[r][c] = ux
			g.Uy[r][c] = uy
		}
	}
	return g
}
