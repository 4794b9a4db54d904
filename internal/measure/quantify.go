// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package measure

import (
	"fmt"
	"math"
)

// Curve is a linear calibration curve: area = Slope*concentration + Intercept.
type Curve struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// NewCurve returns a calibration curve. The slope must be finite and
// non-zero and the intercept finite.
func NewCurve(slope, intercept float64) (Curve, error) {
	if slope == 0 || !finite(slope) {
		return Curve{}, fmt.Errorf("calibration slope must be a finite non-zero number, got %v", slope)
	}
	if !finite(intercept) {
		return Curve{}, fmt.Errorf("calibration intercept must be a finite number, got %v", intercept)
	}
	return Curve{Slope: slope, Intercept: intercept}, nil
}

// Concentration converts a peak area into a concentration, rounded to six
// decimal places. An area that yields NaN maps to 0.
func (c Curve) Concentration(area float64) float64 {
	conc := (area - c.Intercept) / c.Slope
	if math.IsNaN(conc) {
		return 0
	}
	return math.Round(conc*1e6) / 1e6
}
