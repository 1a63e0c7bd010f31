package flow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// homography is a 3x3 projective transform from image plane to ground
// plane, stored row-major.
type homography [9]float64

// fitHomography solves the direct linear transform for n >= 4 point
// correspondences in the least-squares sense: the null vector of the
// 2n x 9 DLT design matrix, taken from the smallest singular value.
func fitHomography(points []ControlPoint) (homography, error) {
	var h homography
	if len(points) < 4 {
		return h, fmt.Errorf("flow: homography needs at least 4 control points, got %d", len(points))
	}

	a := mat.NewDense(2*len(points), 9, nil)
	for i, p := range points {
		x, y := p.ImageX, p.ImageY
		u, v := p.WorldX, p.WorldY
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return h, fmt.Errorf("flow: homography SVD failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	// A well-posed fit has exactly one near-zero singular value. A
	// second one means the control points are collinear or coincident.
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[7]/sv[0] < 1e-9 {
		return h, fmt.Errorf("flow: degenerate control point configuration")
	}

	// Null vector: right singular vector of the smallest singular value.
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}
	if math.Abs(h[8]) < 1e-12 {
		return h, fmt.Errorf("flow: degenerate control point configuration")
	}
	for i := range h {
		h[i] /= h[8]
	}
	return h, nil
}

// apply maps an image point to ground-plane coordinates.
func (h homography) apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}
