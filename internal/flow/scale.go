package flow

import (
	"fmt"

	"github.com/fluvial-data/flow.report/internal/units"
)

// ControlPoint maps an image pixel coordinate to a ground-plane
// coordinate in metres, used to fit the bird's-eye homography for
// oblique footage.
type ControlPoint struct {
	ImageX float64 `json:"image_x"`
	ImageY float64 `json:"image_y"`
	WorldX float64 `json:"world_x"`
	WorldY float64 `json:"world_y"`
}

// ScaleParams converts pixel/frame velocities to physical units.
// A zero value leaves results in pixel units.
type ScaleParams struct {
	// FPS is the video frame rate.
	FPS float64

	// MetersPerPixel is the nadir ground sampling distance. Ignored
	// when ControlPoints define a homography.
	MetersPerPixel float64

	// Origin is subtracted from grid coordinates before scaling, in
	// pixels.
	Origin [2]float64

	// ControlPoints, when at least four are given, fit a homography
	// from image plane to ground plane so oblique views are not
	// scaled as if nadir.
	ControlPoints []ControlPoint
}

// Enabled reports whether the params describe a meaningful conversion.
func (p ScaleParams) Enabled() bool {
	return p.FPS > 0 && (p.MetersPerPixel > 0 || len(p.ControlPoints) >= 4)
}

// Scale returns a unit-tagged copy of the grid with velocities in m/s.
// The input grid is never mutated. Sentinel cells stay sentinel.
//
// Without control points the transform is linear:
//
//	Ux_phys = Ux_px * MetersPerPixel * FPS
//
// (the px/frame grid is already normalised by the pair's frame gap).
// With control points, each cell's displacement is mapped through the
// homography so the magnitude is measured in ground-plane metres at
// that cell, not image-plane pixels. Either way the grid axes come
// back in metres; the homography is not separable in x and y, so the
// axes are projected along the grid centrelines.
func Scale(g *GridFrame, p ScaleParams) (*GridFrame, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("flow: scaling params incomplete: need fps and meters-per-pixel or >= 4 control points")
	}

	out := g.Clone()
	out.Units = units.MPS

	if len(p.ControlPoints) >= 4 {
		h, err := fitHomography(p.ControlPoints)
		if err != nil {
			return nil, err
		}
		for r := range out.Uy {
			for c := range out.Uy[r] {
				ux, uy := g.Ux[r][c], g.Uy[r][c]
				if IsNoData(ux) || IsNoData(uy) {
					continue
				}
				x0, y0 := h.apply(g.X[c], g.Y[r])
				x1, y1 := h.apply(g.X[c]+ux, g.Y[r]+uy)
				out.Ux[r][c] = (x1 - x0) * p.FPS
				out.Uy[r][c] = (y1 - y0) * p.FPS
			}
		}
		midX, midY := axisMid(g.X), axisMid(g.Y)
		for c := range out.X {
			wx, _ := h.apply(g.X[c], midY)
			out.X[c] = wx
		}
		for r := range out.Y {
			_, wy := h.apply(midX, g.Y[r])
			out.Y[r] = wy
		}
		return out, nil
	}

	factor := p.MetersPerPixel * p.FPS
	for r := range out.Uy {
		for c := range out.Uy[r] {
			if IsNoData(g.Ux[r][c]) || IsNoData(g.Uy[r][c]) {
				continue
			}
			out.Ux[r][c] = g.Ux[r][c] * factor
			out.Uy[r][c] = g.Uy[r][c] * factor
		}
	}
	for c := range out.X {
		out.X[c] = (g.X[c] - p.Origin[0]) * p.MetersPerPixel
	}
	for r := range out.Y {
		out.Y[r] = (g.Y[r] - p.Origin[1]) * p.MetersPerPixel
	}
	return out, nil
}

func axisMid(axis []float64) float64 {
	if len(axis) == 0 {
		return 0
	}
	return (axis[0] + axis[len(axis)-1]) / 2
}
