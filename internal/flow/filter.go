package flow

import "math"

// FilterParams controls displacement-sample rejection.
type FilterParams struct {
	// VlimMin and VlimMax bound the plausible speed range in pixels
	// per frame (inclusive). Samples outside the range are discarded.
	VlimMin float64
	VlimMax float64

	// Radius is the neighbourhood radius in pixels for the
	// spatial-consistency gate.
	Radius float64

	// MaxDeviation is the largest allowed deviation (px/frame) of a
	// sample's displacement from the mean displacement of its
	// neighbours.
	MaxDeviation float64

	// FrameGap is the plan's step: the number of frames between the
	// two images of a pair. Speeds are normalised by it so vlim is
	// always expressed per single frame interval.
	FrameGap int
}

// Filter applies the magnitude gate and the spatial-consistency gate to
// a sample set and returns the surviving subsequence. The two gates are
// independent predicates evaluated against the input set, so the result
// does not depend on sample order and the input is never mutated.
func Filter(samples []Sample, p FilterParams) []Sample {
	if len(samples) == 0 {
		return nil
	}
	gap := p.FrameGap
	if gap < 1 {
		gap = 1
	}

	idx := newBucketIndex(samples, p.Radius)

	out := make([]Sample, 0, len(samples))
	for i, s := range samples {
		speed := s.Speed(gap)
		if speed < p.VlimMin || speed > p.VlimMax {
			continue
		}
		if !spatiallyConsistent(idx, samples, i, p, gap) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// spatiallyConsistent compares sample i's displacement to the mean
// displacement of the other samples within Radius. A sample with no
// neighbours cannot be assessed and is kept.
func spatiallyConsistent(idx *bucketIndex, samples []Sample, i int, p FilterParams, gap int) bool {
	if p.Radius <= 0 || p.MaxDeviation <= 0 {
		return true
	}
	s := samples[i]
	var sumDX, sumDY float64
	n := 0
	idx.within(s.X, s.Y, p.Radius, func(j int, _ float64) {
		if j == i {
			return
		}
		sumDX += samples[j].DX
		sumDY += samples[j].DY
		n++
	})
	if n == 0 {
		return true
	}
	meanDX := sumDX / float64(n)
	meanDY := sumDY / float64(n)
	dev := math.Hypot(s.DX-meanDX, s.DY-meanDY) / float64(gap)
	return dev <= p.MaxDeviation
}
