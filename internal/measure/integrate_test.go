// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xic-engine/pkg/types"
)

func TestIntegrate(t *testing.T) {
	c := types.Chromatogram{
		Compound:       "PFOA",
		Ion:            "413",
		RetentionTimes: []float64{0, 1, 2, 3, 4},
		Intensities:    []float64{0, 10, 20, 10, 0},
	}

	tests := []struct {
		name       string
		start, end float64
		want       float64
	}{
		{"full range", 0, 4, 40},
		{"inner window", 1, 3, 30},
		{"single point", 2, 2, 0},
		{"outside", 10, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Integrate(c, tt.start, tt.end)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIntegrate_Errors(t *testing.T) {
	_, err := Integrate(types.Chromatogram{RetentionTimes: []float64{1}, Intensities: nil}, 0, 1)
	assert.Error(t, err)

	_, err = Integrate(types.Chromatogram{}, 2, 1)
	assert.Error(t, err)
}
