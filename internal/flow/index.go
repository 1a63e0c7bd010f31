package flow

import "math"

// bucketIndex is a uniform-grid spatial hash over sample positions.
// Bucket size equals the query radius so a radius query only has to
// visit the 3x3 block of buckets around the query point. Shared by the
// spatial-consistency filter and the grid interpolator, which use the
// same neighbourhood length scale.
type bucketIndex struct {
	size    float64
	buckets map[[2]int][]int
	samples []Sample
}

func newBucketIndex(samples []Sample, radius float64) *bucketIndex {
	if radius <= 0 {
		radius = 1
	}
	idx := &bucketIndex{
		size:    radius,
		buckets: make(map[[2]int][]int),
		samples: samples,
	}
	for i, s := range samples {
		k := idx.key(s.X, s.Y)
		idx.buckets[k] = append(idx.buckets[k], i)
	}
	return idx
}

func (idx *bucketIndex) key(x, y float64) [2]int {
	return [2]int{int(math.Floor(x / idx.size)), int(math.Floor(y / idx.size))}
}

// within calls fn with the index and distance of every sample whose
// position lies within radius of (x, y). radius must be <= the index's
// bucket size.
func (idx *bucketIndex) within(x, y, radius float64, fn func(i int, dist float64)) {
	k := idx.key(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, i := range idx.buckets[[2]int{k[0] + dx, k[1] + dy}] {
				s := idx.samples[i]
				d := math.Hypot(s.X-x, s.Y-y)
				if d <= radius {
					fn(i, d)
				}
			}
		}
	}
}
