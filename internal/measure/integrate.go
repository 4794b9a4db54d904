// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package measure

import (
	"fmt"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// Integrate returns the trapezoidal area of a chromatogram between start
// and end (inclusive, minutes). It returns 0 when fewer than two points
// fall inside the window.
func Integrate(c types.Chromatogram, start, end float64) (float64, error) {
	if len(c.RetentionTimes) != len(c.Intensities) {
		return 0, fmt.Errorf("chromatogram %s/%s: %d retention times but %d intensities",
			c.Compound, c.Ion, len(c.RetentionTimes), len(c.Intensities))
	}
	if end < start {
		return 0, fmt.Errorf("integration window end %v before start %v", end, start)
	}

	var (
		area         float64
		prevT, prevI float64
		havePrev     bool
	)
	for i, t := range c.RetentionTimes {
		if t < start || t > end {
			continue
		}
		in := c.Intensities[i]
		if havePrev {
			area += (t - prevT) * (in + prevI) / 2
		}
		prevT, prevI, havePrev = t, in, true
	}
	return area, nil
}
