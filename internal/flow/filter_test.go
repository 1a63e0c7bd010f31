package flow

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func defaultFilterParams() FilterParams {
	return FilterParams{
		VlimMin:      0,
		VlimMax:      30,
		Radius:       20,
		MaxDeviation: 1,
		FrameGap:     1,
	}
}

func TestFilterMagnitudeGate(t *testing.T) {
	p := defaultFilterParams()
	p.VlimMin = 1
	p.VlimMax = 5

	samples := []Sample{
		{X: 0, Y: 0, DX: 0.5, DY: 0},  // too slow
		{X: 100, Y: 0, DX: 3, DY: 0},  // in range
		{X: 200, Y: 0, DX: 0, DY: 5},  // at the inclusive upper bound
		{X: 300, Y: 0, DX: 10, DY: 0}, // too fast
		{X: 400, Y: 0, DX: 0, DY: 1},  // at the inclusive lower bound
	}

	got := Filter(samples, p)
	want := []Sample{samples[1], samples[2], samples[4]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("magnitude gate (-want +got):\n%s", diff)
	}

	for _, s := range got {
		sp := s.Speed(p.FrameGap)
		if sp < p.VlimMin || sp > p.VlimMax {
			t.Errorf("sample with speed %.2f escaped vlim [%v, %v]", sp, p.VlimMin, p.VlimMax)
		}
	}
}

func TestFilterMagnitudeGateUsesFrameGap(t *testing.T) {
	p := defaultFilterParams()
	p.VlimMin = 0
	p.VlimMax = 4
	p.FrameGap = 5

	// 15 px over 5 frames is 3 px/frame and must survive a vlim of 4.
	samples := []Sample{{X: 0, Y: 0, DX: 15, DY: 0}}
	if got := Filter(samples, p); len(got) != 1 {
		t.Fatalf("got %d samples, want 1: gap-normalised speed should pass the gate", len(got))
	}
}

func TestFilterSpatialConsistency(t *testing.T) {
	p := defaultFilterParams()
	p.VlimMax = 100 // keep the magnitude gate out of the way

	// A coherent cluster moving right at ~3 px/frame, large enough
	// that one contrarian in its midst cannot drag any neighbourhood
	// mean past MaxDeviation.
	var samples []Sample
	for i := 0; i < 8; i++ {
		for j := 0; j < 5; j++ {
			samples = append(samples, Sample{
				X:  10 + float64(i)*2,
				Y:  10 + float64(j)*2,
				DX: 3 + 0.05*float64(i%3),
				DY: 0.05 * float64(j%2),
			})
		}
	}
	samples = append(samples, Sample{X: 15, Y: 13, DX: -20, DY: 15})

	got := Filter(samples, p)
	if len(got) != 40 {
		t.Fatalf("got %d samples, want 40", len(got))
	}
	for _, s := range got {
		if s.DX < 0 {
			t.Errorf("outlier sample %+v survived the spatial gate", s)
		}
	}
}

func TestFilterLoneSampleKept(t *testing.T) {
	p := defaultFilterParams()
	samples := []Sample{{X: 500, Y: 500, DX: 2, DY: 0}}
	if got := Filter(samples, p); len(got) != 1 {
		t.Fatalf("a sample with no neighbours must be kept, got %d", len(got))
	}
}

func TestFilterIdempotent(t *testing.T) {
	p := defaultFilterParams()
	p.VlimMax = 10

	rng := rand.New(rand.NewSource(7))
	var samples []Sample
	for i := 0; i < 200; i++ {
		samples = append(samples, Sample{
			X:  rng.Float64() * 400,
			Y:  rng.Float64() * 400,
			DX: 3 + rng.Float64()*0.2,
			DY: rng.Float64() * 0.2,
		})
	}
	// Outliers to give the first pass something to reject.
	samples = append(samples,
		Sample{X: 50, Y: 50, DX: 25, DY: 0},
		Sample{X: 200, Y: 200, DX: -9, DY: 9},
	)

	once := Filter(samples, p)
	twice := Filter(once, p)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("filtering a filtered set changed it (-once +twice):\n%s", diff)
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	p := defaultFilterParams()
	samples := []Sample{
		{X: 0, Y: 0, DX: 3, DY: 0},
		{X: 1000, Y: 0, DX: 99, DY: 0},
	}
	backup := append([]Sample(nil), samples...)
	Filter(samples, p)
	if diff := cmp.Diff(backup, samples); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestFilterOrderIndependent(t *testing.T) {
	p := defaultFilterParams()
	samples := []Sample{
		{X: 10, Y: 10, DX: 3, DY: 0},
		{X: 12, Y: 10, DX: 3.1, DY: 0},
		{X: 14, Y: 10, DX: 2.9, DY: 0},
		{X: 11, Y: 12, DX: 20, DY: -20},
	}
	p.VlimMax = 100

	forward := Filter(samples, p)

	reversed := make([]Sample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}
	backward := Filter(reversed, p)

	if len(forward) != len(backward) {
		t.Fatalf("surviving set size depends on order: %d vs %d", len(forward), len(backward))
	}
	seen := make(map[Sample]bool, len(forward))
	for _, s := range forward {
		seen[s] = true
	}
	for _, s := range backward {
		if !seen[s] {
			t.Errorf("sample %+v only survives in one ordering", s)
		}
	}
}

func TestFilterEmptyInput(t *testing.T) {
	if got := Filter(nil, defaultFilterParams()); got != nil {
		t.Errorf("Filter(nil) = %v, want nil", got)
	}
}
