// Package track detects and tracks surface features between frame
// pairs using pyramidal Lucas-Kanade optical flow. It is the only
// package that runs OpenCV on pixel data.
package track

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/roi"
)

// Params tunes feature detection and bidirectional validation.
type Params struct {
	// MaxCorners bounds the number of features detected per pair.
	MaxCorners int

	// QualityLevel is the minimal accepted corner quality relative to
	// the best corner found.
	QualityLevel float64

	// MinDistance is the minimum spacing in pixels between detected
	// corners.
	MinDistance float64

	// WayBackThreshold is the maximum round-trip position error in
	// pixels for the bidirectional consistency gate. A feature
	// tracked A -> B and back to A must land within this distance of
	// its start.
	WayBackThreshold float64

	// CLAHE enables a contrast-limited adaptive histogram
	// equalisation pre-pass on both frames, improving feature yield
	// in poor lighting without changing output units.
	CLAHE bool

	// CLAHEClipLimit is the CLAHE contrast clip limit.
	CLAHEClipLimit float64
}

// DefaultParams mirror the defaults of the interactive tool this
// pipeline was extracted from.
func DefaultParams() Params {
	return Params{
		MaxCorners:       50000,
		QualityLevel:     0.001,
		MinDistance:      3,
		WayBackThreshold: 4,
		CLAHE:            true,
		CLAHEClipLimit:   2,
	}
}

// Tracker computes sparse displacement samples between two frames.
type Tracker struct {
	params Params
}

// New returns a Tracker with the given parameters.
func New(params Params) *Tracker {
	if params.MaxCorners <= 0 {
		params.MaxCorners = DefaultParams().MaxCorners
	}
	if params.QualityLevel <= 0 {
		params.QualityLevel = DefaultParams().QualityLevel
	}
	if params.MinDistance <= 0 {
		params.MinDistance = DefaultParams().MinDistance
	}
	if params.WayBackThreshold <= 0 {
		params.WayBackThreshold = DefaultParams().WayBackThreshold
	}
	if params.CLAHEClipLimit <= 0 {
		params.CLAHEClipLimit = DefaultParams().CLAHEClipLimit
	}
	return &Tracker{params: params}
}

// Track detects features in frameA restricted to mask-true pixels,
// computes their forward displacement into frameB, and validates each
// by tracking it back to frameA. Only features whose round-trip error
// is below the way-back threshold are returned. An empty result is a
// valid outcome, not an error. Sample order carries no meaning.
//
// Both Mats must be single-channel grayscale of equal size; the caller
// retains ownership.
func (t *Tracker) Track(frameA, frameB gocv.Mat, mask *roi.Mask) ([]flow.Sample, error) {
	a, b := frameA, frameB
	if t.params.CLAHE {
		clahe := gocv.NewCLAHEWithParams(t.params.CLAHEClipLimit, image.Pt(8, 8))
		defer clahe.Close()

		ea := gocv.NewMat()
		defer ea.Close()
		eb := gocv.NewMat()
		defer eb.Close()
		clahe.Apply(frameA, &ea)
		clahe.Apply(frameB, &eb)
		a, b = ea, eb
	}

	corners := gocv.NewMat()
	defer corners.Close()
	gocv.GoodFeaturesToTrack(a, &corners, t.params.MaxCorners, t.params.QualityLevel, t.params.MinDistance)
	if corners.Rows() == 0 {
		return nil, nil
	}

	// Keep only mask-true features; a point outside the ROI must
	// never be emitted.
	kept := make([][2]float32, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		x := corners.GetFloatAt(i, 0)
		y := corners.GetFloatAt(i, 1)
		if mask.At(int(x), int(y)) {
			kept = append(kept, [2]float32{x, y})
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	prevPts := gocv.NewMatWithSize(len(kept), 2, gocv.MatTypeCV32F)
	defer prevPts.Close()
	for i, p := range kept {
		prevPts.SetFloatAt(i, 0, p[0])
		prevPts.SetFloatAt(i, 1, p[1])
	}

	// Forward pass A -> B.
	nextPts := gocv.NewMat()
	defer nextPts.Close()
	fwdStatus := gocv.NewMat()
	defer fwdStatus.Close()
	fwdErr := gocv.NewMat()
	defer fwdErr.Close()
	gocv.CalcOpticalFlowPyrLK(a, b, prevPts, nextPts, &fwdStatus, &fwdErr)

	// Backward pass B -> A for the way-back consistency gate.
	backPts := gocv.NewMat()
	defer backPts.Close()
	bwdStatus := gocv.NewMat()
	defer bwdStatus.Close()
	bwdErr := gocv.NewMat()
	defer bwdErr.Close()
	gocv.CalcOpticalFlowPyrLK(b, a, nextPts, backPts, &bwdStatus, &bwdErr)

	wayBack := t.params.WayBackThreshold
	samples := make([]flow.Sample, 0, len(kept))
	for i := range kept {
		if fwdStatus.GetUCharAt(i, 0) != 1 || bwdStatus.GetUCharAt(i, 0) != 1 {
			continue
		}
		x0 := float64(prevPts.GetFloatAt(i, 0))
		y0 := float64(prevPts.GetFloatAt(i, 1))
		x1 := float64(nextPts.GetFloatAt(i, 0))
		y1 := float64(nextPts.GetFloatAt(i, 1))
		xb := float64(backPts.GetFloatAt(i, 0))
		yb := float64(backPts.GetFloatAt(i, 1))

		roundTrip := math.Hypot(xb-x0, yb-y0)
		if roundTrip > wayBack {
			continue
		}
		samples = append(samples, flow.Sample{
			X:    x0,
			Y:    y0,
			DX:   x1 - x0,
			DY:   y1 - y0,
			Conf: 1 - roundTrip/wayBack,
		})
	}
	return samples, nil
}
