// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package measure

import (
	"fmt"
	"math"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// Tolerance describes a mass-accuracy window: a value and its unit.
type Tolerance struct {
	Value float64
	Unit  types.ToleranceUnit
}

// ParseUnit normalizes a unit name. The empty string selects Dalton.
func ParseUnit(s string) (types.ToleranceUnit, error) {
	switch s {
	case "", "da", "Da", "DA", "mz", "abs":
		return types.ToleranceDalton, nil
	case "ppm", "PPM":
		return types.TolerancePPM, nil
	}
	return "", fmt.Errorf("unknown tolerance unit %q: use da or ppm", s)
}

// Validate checks that the tolerance is finite, positive, and has a known unit.
func (t Tolerance) Validate() error {
	if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) || t.Value <= 0 {
		return fmt.Errorf("mass accuracy must be a positive finite number, got %v", t.Value)
	}
	switch t.Unit {
	case types.ToleranceDalton, types.TolerancePPM:
		return nil
	}
	return fmt.Errorf("unknown tolerance unit %q", t.Unit)
}

// Delta returns the half-width of the window around mass.
func (t Tolerance) Delta(mass float64) float64 {
	if t.Unit == types.TolerancePPM {
		return mass * t.Value / 1e6
	}
	return t.Value
}

// Window returns the inclusive [lo, hi] window around mass.
func (t Tolerance) Window(mass float64) (lo, hi float64) {
	d := t.Delta(mass)
	return mass - d, mass + d
}

func (t Tolerance) String() string {
	return fmt.Sprintf("±%g %s", t.Value, t.Unit)
}
