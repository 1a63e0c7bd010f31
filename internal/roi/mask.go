// Package roi holds the binary region-of-interest mask that restricts
// feature tracking and interpolation to the water surface.
package roi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMaskDimension is returned when a mask's dimensions do not match the
// frames it is applied to. Masks are never resized implicitly.
var ErrMaskDimension = errors.New("roi: mask dimensions do not match frame dimensions")

// Mask is a binary raster the size of a video frame. A pixel value of
// 255 marks the region of interest; 0 marks excluded area.
type Mask struct {
	width  int
	height int
	data   []uint8
}

// Point is a 2-D pixel coordinate used for polygon vertices.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FullFrame returns a mask covering the entire frame.
func FullFrame(width, height int) *Mask {
	m := &Mask{width: width, height: height, data: make([]uint8, width*height)}
	for i := range m.data {
		m.data[i] = 255
	}
	return m
}

// FromRect returns a mask covering the axis-aligned rectangle
// [x0,x1) x [y0,y1), clamped to the frame bounds.
func FromRect(width, height, x0, y0, x1, y1 int) *Mask {
	m := &Mask{width: width, height: height, data: make([]uint8, width*height)}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	for y := y0; y < y1; y++ {
		row := y * width
		for x := x0; x < x1; x++ {
			m.data[row+x] = 255
		}
	}
	return m
}

// FromPolygon rasterizes a closed polygon into a mask. Pixels whose
// centres fall inside the polygon (even-odd rule) are part of the ROI.
// At least three vertices are required.
func FromPolygon(width, height int, vertices []Point) (*Mask, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("roi: polygon needs at least 3 vertices, got %d", len(vertices))
	}
	m := &Mask{width: width, height: height, data: make([]uint8, width*height)}
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			if pointInPolygon(float64(x)+0.5, float64(y)+0.5, vertices) {
				m.data[row+x] = 255
			}
		}
	}
	return m, nil
}

// LoadPolygonFile reads a JSON file holding a polygon vertex list
// ([{"x":..,"y":..}, ...]) and rasterizes it at the given frame size.
func LoadPolygonFile(path string, width, height int) (*Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roi: read polygon file: %w", err)
	}
	var vertices []Point
	if err := json.Unmarshal(data, &vertices); err != nil {
		return nil, fmt.Errorf("roi: parse polygon file: %w", err)
	}
	return FromPolygon(width, height, vertices)
}

// pointInPolygon implements the even-odd ray-casting rule.
func pointInPolygon(x, y float64, vertices []Point) bool {
	inside := false
	n := len(vertices)
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > y) != (vj.Y > y) {
			xCross := vi.X + (y-vi.Y)/(vj.Y-vi.Y)*(vj.X-vi.X)
			if x < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// At reports whether the pixel at (x, y) is inside the ROI.
// Out-of-bounds coordinates are outside.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.data[y*m.width+x] != 0
}

// Data exposes the raw raster, one byte per pixel in row-major order.
// Callers must not mutate the returned slice.
func (m *Mask) Data() []uint8 { return m.data }

// Area returns the number of ROI pixels.
func (m *Mask) Area() int {
	n := 0
	for _, v := range m.data {
		if v != 0 {
			n++
		}
	}
	return n
}

// CheckDims validates the mask against frame dimensions. A mismatch is
// fatal to the run and surfaced before any processing starts.
func (m *Mask) CheckDims(frameWidth, frameHeight int) error {
	if m.width != frameWidth || m.height != frameHeight {
		return fmt.Errorf("%w: mask %dx%d, frame %dx%d",
			ErrMaskDimension, m.width, m.height, frameWidth, frameHeight)
	}
	return nil
}
