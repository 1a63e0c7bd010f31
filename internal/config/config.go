// Package config loads and validates analysis parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/flow/track"
)

// Default parameter values, matching the interactive tool this
// pipeline was extracted from.
const (
	DefaultStartingFrame = 0
	DefaultStep          = 1
	DefaultShift         = 1
	DefaultTotalPairs    = 50

	DefaultVlimMin        = 0.0
	DefaultVlimMax        = 30.0
	DefaultFilterRadius   = 20.0
	DefaultMaxDevInRadius = 1.0
	DefaultWayBack        = 4.0
	DefaultCLAHE          = true

	DefaultMaxCorners   = 50000
	DefaultQualityLevel = 0.001
	DefaultMinDistance  = 3.0

	DefaultGridStep     = 5.0
	DefaultInterpRadius = 20.0
	DefaultSharpness    = 8.0
)

// AnalysisConfig is the JSON analysis parameter surface. All fields are
// optional pointers; the Get* accessors fall back to defaults for any
// field not present, so partial configs are safe.
type AnalysisConfig struct {
	// Time vector params
	StartingFrame *int `json:"starting_frame,omitempty"`
	Step          *int `json:"step,omitempty"`
	Shift         *int `json:"shift,omitempty"`
	TotalPairs    *int `json:"total_pairs,omitempty"`

	// Filter params
	VlimMin        *float64 `json:"vlim_min,omitempty"`
	VlimMax        *float64 `json:"vlim_max,omitempty"`
	FilterRadius   *float64 `json:"filter_radius_px,omitempty"`
	MaxDevInRadius *float64 `json:"max_dev_in_radius,omitempty"`
	WayBack        *float64 `json:"way_back_threshold,omitempty"`
	CLAHE          *bool    `json:"clahe,omitempty"`

	// Feature detection params
	MaxCorners   *int     `json:"max_corners,omitempty"`
	QualityLevel *float64 `json:"quality_level,omitempty"`
	MinDistance  *float64 `json:"min_distance,omitempty"`

	// Interpolation params
	GridStep     *float64 `json:"grid_step_px,omitempty"`
	InterpRadius *float64 `json:"interp_radius_px,omitempty"`
	Sharpness    *float64 `json:"sharpness,omitempty"`

	// Scaling params (optional; absent means results stay in px/frame)
	FPS            *float64            `json:"fps,omitempty"`
	MetersPerPixel *float64            `json:"meters_per_pixel,omitempty"`
	OriginX        *float64            `json:"origin_x,omitempty"`
	OriginY        *float64            `json:"origin_y,omitempty"`
	ControlPoints  []flow.ControlPoint `json:"control_points,omitempty"`
}

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// Load reads an AnalysisConfig from a JSON file. Fields omitted from
// the file retain their defaults.
func Load(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency of whatever is set.
func (c *AnalysisConfig) Validate() error {
	if c.GetStartingFrame() < 0 {
		return fmt.Errorf("starting_frame must be >= 0, got %d", c.GetStartingFrame())
	}
	if c.GetStep() < 1 {
		return fmt.Errorf("step must be >= 1, got %d", c.GetStep())
	}
	if c.GetShift() < 1 {
		return fmt.Errorf("shift must be >= 1, got %d", c.GetShift())
	}
	if c.GetTotalPairs() < 1 {
		return fmt.Errorf("total_pairs must be >= 1, got %d", c.GetTotalPairs())
	}
	if c.GetVlimMin() < 0 {
		return fmt.Errorf("vlim_min must be >= 0, got %v", c.GetVlimMin())
	}
	if c.GetVlimMax() <= c.GetVlimMin() {
		return fmt.Errorf("vlim_max (%v) must exceed vlim_min (%v)", c.GetVlimMax(), c.GetVlimMin())
	}
	if c.GetFilterRadius() <= 0 {
		return fmt.Errorf("filter_radius_px must be > 0, got %v", c.GetFilterRadius())
	}
	if c.GetGridStep() <= 0 {
		return fmt.Errorf("grid_step_px must be > 0, got %v", c.GetGridStep())
	}
	if c.GetInterpRadius() <= 0 {
		return fmt.Errorf("interp_radius_px must be > 0, got %v", c.GetInterpRadius())
	}
	if c.FPS != nil && *c.FPS <= 0 {
		return fmt.Errorf("fps must be > 0, got %v", *c.FPS)
	}
	if c.MetersPerPixel != nil && *c.MetersPerPixel <= 0 {
		return fmt.Errorf("meters_per_pixel must be > 0, got %v", *c.MetersPerPixel)
	}
	if n := len(c.ControlPoints); n > 0 && n < 4 {
		return fmt.Errorf("control_points needs at least 4 entries for a homography, got %d", n)
	}
	return nil
}

func (c *AnalysisConfig) GetStartingFrame() int {
	if c.StartingFrame != nil {
		return *c.StartingFrame
	}
	return DefaultStartingFrame
}

func (c *AnalysisConfig) GetStep() int {
	if c.Step != nil {
		return *c.Step
	}
	return DefaultStep
}

func (c *AnalysisConfig) GetShift() int {
	if c.Shift != nil {
		return *c.Shift
	}
	return DefaultShift
}

func (c *AnalysisConfig) GetTotalPairs() int {
	if c.TotalPairs != nil {
		return *c.TotalPairs
	}
	return DefaultTotalPairs
}

func (c *AnalysisConfig) GetVlimMin() float64 {
	if c.VlimMin != nil {
		return *c.VlimMin
	}
	return DefaultVlimMin
}

func (c *AnalysisConfig) GetVlimMax() float64 {
	if c.VlimMax != nil {
		return *c.VlimMax
	}
	return DefaultVlimMax
}

func (c *AnalysisConfig) GetFilterRadius() float64 {
	if c.FilterRadius != nil {
		return *c.FilterRadius
	}
	return DefaultFilterRadius
}

func (c *AnalysisConfig) GetMaxDevInRadius() float64 {
	if c.MaxDevInRadius != nil {
		return *c.MaxDevInRadius
	}
	return DefaultMaxDevInRadius
}

func (c *AnalysisConfig) GetWayBack() float64 {
	if c.WayBack != nil {
		return *c.WayBack
	}
	return DefaultWayBack
}

func (c *AnalysisConfig) GetCLAHE() bool {
	if c.CLAHE != nil {
		return *c.CLAHE
	}
	return DefaultCLAHE
}

func (c *AnalysisConfig) GetMaxCorners() int {
	if c.MaxCorners != nil {
		return *c.MaxCorners
	}
	return DefaultMaxCorners
}

func (c *AnalysisConfig) GetQualityLevel() float64 {
	if c.QualityLevel != nil {
		return *c.QualityLevel
	}
	return DefaultQualityLevel
}

func (c *AnalysisConfig) GetMinDistance() float64 {
	if c.MinDistance != nil {
		return *c.MinDistance
	}
	return DefaultMinDistance
}

func (c *AnalysisConfig) GetGridStep() float64 {
	if c.GridStep != nil {
		return *c.GridStep
	}
	return DefaultGridStep
}

func (c *AnalysisConfig) GetInterpRadius() float64 {
	if c.InterpRadius != nil {
		return *c.InterpRadius
	}
	return DefaultInterpRadius
}

func (c *AnalysisConfig) GetSharpness() float64 {
	if c.Sharpness != nil {
		return *c.Sharpness
	}
	return DefaultSharpness
}

// TrackParams assembles the feature tracker parameters.
func (c *AnalysisConfig) TrackParams() track.Params {
	return track.Params{
		MaxCorners:       c.GetMaxCorners(),
		QualityLevel:     c.GetQualityLevel(),
		MinDistance:      c.GetMinDistance(),
		WayBackThreshold: c.GetWayBack(),
		CLAHE:            c.GetCLAHE(),
	}
}

// FilterParams assembles the displacement filter parameters. The frame
// gap is the plan's step so speed gating is always per single frame.
func (c *AnalysisConfig) FilterParams() flow.FilterParams {
	return flow.FilterParams{
		VlimMin:      c.GetVlimMin(),
		VlimMax:      c.GetVlimMax(),
		Radius:       c.GetFilterRadius(),
		MaxDeviation: c.GetMaxDevInRadius(),
		FrameGap:     c.GetStep(),
	}
}

// InterpParams assembles the grid interpolation parameters.
func (c *AnalysisConfig) InterpParams() flow.InterpParams {
	return flow.InterpParams{
		CellSize:  c.GetGridStep(),
		Radius:    c.GetInterpRadius(),
		Sharpness: c.GetSharpness(),
		FrameGap:  c.GetStep(),
	}
}

// ScaleParams assembles the optional physical scaling parameters.
// streamFps fills in the frame rate when the config does not pin one.
func (c *AnalysisConfig) ScaleParams(streamFps float64) flow.ScaleParams {
	p := flow.ScaleParams{ControlPoints: c.ControlPoints}
	if c.FPS != nil {
		p.FPS = *c.FPS
	} else {
		p.FPS = streamFps
	}
	if c.MetersPerPixel != nil {
		p.MetersPerPixel = *c.MetersPerPixel
	}
	if c.OriginX != nil {
		p.Origin[0] = *c.OriginX
	}
	if c.OriginY != nil {
		p.Origin[1] = *c.OriginY
	}
	return p
}
