// Package units provides shared constants and validation for speed units
package units

// Unit constants
const (
	PXF  = "pxf" // pixels per frame (unscaled results)
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{PXF, MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "pxf, mps, mph, kmph, kph"
}

// Label returns the human-readable form of a unit constant.
func Label(unit string) string {
	switch unit {
	case PXF:
		return "px/frame"
	case MPS:
		return "m/s"
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return unit
	}
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Scaled velocity fields are stored in m/s; pxf passes through unchanged
// because a pixel-unit value has no physical conversion without scaling
// parameters.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS, PXF:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}
