// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package measure

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// --- test helpers ---

func pfoaList() *types.IonList {
	return &types.IonList{
		Name: "pfas",
		Compounds: []types.CompoundGroup{
			{
				Name: "PFOA",
				Ions: []types.TargetIon{{Name: "413", ExpectedMass: 413.0, Label: "[M-H]-"}},
				Info: []string{"[M-H]-"},
			},
		},
	}
}

func scan(idx int, rt float64, peaks ...types.Peak) types.Scan {
	return types.Scan{Index: idx, RetentionTime: rt, Peaks: peaks}
}

func peak(mass, intensity float64) types.Peak {
	return types.Peak{Mass: mass, Intensity: intensity}
}

func newEngine(t *testing.T, accuracy float32, opts ...Option) *Engine {
	t.Helper()
	e, err := New(accuracy, types.ToleranceDalton, opts...)
	require.NoError(t, err)
	return e
}

func ionAttrs(t *testing.T, m types.Measurement, compound, ion string) types.IonAttributes {
	t.Helper()
	c, ok := m.Compound(compound)
	require.True(t, ok, "compound %s missing", compound)
	attrs, ok := c.Ions.Get(ion)
	require.True(t, ok, "ion %s missing from %s", ion, compound)
	return attrs
}

// --- tests ---

func TestNew_RejectsBadAccuracy(t *testing.T) {
	for _, acc := range []float32{0, -0.01, float32(math.NaN()), float32(math.Inf(1))} {
		_, err := New(acc, types.ToleranceDalton)
		assert.Error(t, err, "accuracy %v", acc)
	}
	_, err := New(0.01, "furlongs")
	assert.Error(t, err)
}

func TestNew_DefaultsToDalton(t *testing.T) {
	e, err := New(0.01, "")
	require.NoError(t, err)
	assert.Equal(t, types.ToleranceDalton, e.Tolerance().Unit)
	assert.Equal(t, float32(0.01), e.MassAccuracy())
}

func TestMeasure_MatchInsideWindow(t *testing.T) {
	e := newEngine(t, 0.002)
	scans := []types.Scan{scan(0, 5.20, peak(413.0005, 1000))}

	res := e.Measure(scans, pfoaList())

	attrs := ionAttrs(t, res.Measurement, "PFOA", "413")
	assert.Equal(t, types.Some(1000.0), attrs.Intensity)
	assert.Equal(t, types.Some(5.20), attrs.RetentionTime)
	assert.Equal(t, types.Some(413.0005), attrs.ObservedMass)
	assert.Equal(t, 1, res.Stats.MatchedIons)
}

func TestMeasure_NoMatchOutsideWindow(t *testing.T) {
	e := newEngine(t, 0.002)
	scans := []types.Scan{scan(0, 5.20, peak(413.0050, 1000))}

	res := e.Measure(scans, pfoaList())

	attrs := ionAttrs(t, res.Measurement, "PFOA", "413")
	assert.False(t, attrs.Matched())
	assert.Empty(t, attrs.Values())
	assert.Equal(t, 0, res.Stats.MatchedIons)
}

func TestMeasure_WindowIsInclusive(t *testing.T) {
	e := newEngine(t, 0.5)
	list := &types.IonList{Compounds: []types.CompoundGroup{{
		Name: "edge",
		Ions: []types.TargetIon{{Name: "100", ExpectedMass: 100}},
	}}}
	res := e.Measure([]types.Scan{scan(0, 1, peak(100.5, 7))}, list)
	assert.Equal(t, types.Some(100.5), ionAttrs(t, res.Measurement, "edge", "100").ObservedMass)
}

func TestMeasure_ApexAcrossScans(t *testing.T) {
	e := newEngine(t, 0.01)
	scans := []types.Scan{
		scan(0, 1.0, peak(413.001, 100)),
		scan(1, 1.1, peak(413.002, 900)),
		scan(2, 1.2, peak(412.999, 400)),
		scan(3, 1.3, peak(420.000, 5000)),
	}

	attrs := ionAttrs(t, e.Measure(scans, pfoaList()).Measurement, "PFOA", "413")
	assert.Equal(t, types.Some(900.0), attrs.Intensity)
	assert.Equal(t, types.Some(1.1), attrs.RetentionTime)
	assert.Equal(t, types.Some(413.002), attrs.ObservedMass)
}

func TestMeasure_EqualApexKeepsEarliestScan(t *testing.T) {
	e := newEngine(t, 0.01)
	scans := []types.Scan{
		scan(0, 2.0, peak(413.001, 500)),
		scan(1, 3.0, peak(413.001, 500)),
	}
	attrs := ionAttrs(t, e.Measure(scans, pfoaList()).Measurement, "PFOA", "413")
	assert.Equal(t, types.Some(2.0), attrs.RetentionTime)
}

func TestMeasure_TieBreakWithinScan(t *testing.T) {
	tests := []struct {
		name  string
		peaks []types.Peak
		want  float64
	}{
		{"highest intensity wins", []types.Peak{peak(412.995, 10), peak(413.004, 20)}, 413.004},
		{"equal intensity closest mass wins", []types.Peak{peak(412.996, 10), peak(413.001, 10)}, 413.001},
		{"equal distance lower mass wins", []types.Peak{peak(413.0078125, 10), peak(412.9921875, 10)}, 412.9921875},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, 0.01)
			fwd := ionAttrs(t, e.Measure([]types.Scan{scan(0, 1, tt.peaks...)}, pfoaList()).Measurement, "PFOA", "413")
			rev := slices.Clone(tt.peaks)
			slices.Reverse(rev)
			bwd := ionAttrs(t, e.Measure([]types.Scan{scan(0, 1, rev...)}, pfoaList()).Measurement, "PFOA", "413")

			assert.Equal(t, types.Some(tt.want), fwd.ObservedMass)
			assert.Equal(t, fwd, bwd)
		})
	}
}

func TestMeasure_ZeroIntensityIsAMatch(t *testing.T) {
	e := newEngine(t, 0.01)
	attrs := ionAttrs(t, e.Measure([]types.Scan{scan(0, 4, peak(413, 0))}, pfoaList()).Measurement, "PFOA", "413")
	assert.True(t, attrs.Matched())
	assert.Equal(t, types.Some(0.0), attrs.Intensity)
}

func TestMeasure_SkipsInvalidInput(t *testing.T) {
	e := newEngine(t, 0.01)
	scans := []types.Scan{
		scan(0, math.NaN(), peak(413, 9999)),
		scan(1, 1.0,
			peak(math.NaN(), 50),
			peak(413.001, math.Inf(1)),
			peak(413.002, -4),
			peak(-413, 10),
			peak(413.003, 25),
		),
	}

	res := e.Measure(scans, pfoaList())

	attrs := ionAttrs(t, res.Measurement, "PFOA", "413")
	assert.Equal(t, types.Some(25.0), attrs.Intensity)
	assert.Equal(t, 5, res.Stats.Rejected)
	require.Len(t, res.Stats.Violations, 5)
	assert.Equal(t, Violation{Scan: 0, Peak: -1, Reason: ReasonRetentionTime}, res.Stats.Violations[0])
	assert.Equal(t, ReasonMass, res.Stats.Violations[1].Reason)
	assert.Equal(t, ReasonIntensity, res.Stats.Violations[2].Reason)
	assert.Contains(t, res.Stats.Violations[0].Error(), "scan 0 rejected")
}

func TestMeasure_ViolationsAreCapped(t *testing.T) {
	e := newEngine(t, 0.01)
	peaks := make([]types.Peak, 100)
	for i := range peaks {
		peaks[i] = peak(math.Inf(-1), 1)
	}
	res := e.Measure([]types.Scan{scan(0, 1, peaks...)}, pfoaList())
	assert.Equal(t, 100, res.Stats.Rejected)
	assert.Len(t, res.Stats.Violations, maxRecordedViolations)
}

func TestMeasure_PPMTolerance(t *testing.T) {
	e, err := New(5, types.TolerancePPM)
	require.NoError(t, err)

	// 5 ppm of 413 is 0.002065.
	hit := e.Measure([]types.Scan{scan(0, 1, peak(413.0020, 10))}, pfoaList())
	miss := e.Measure([]types.Scan{scan(0, 1, peak(413.0025, 10))}, pfoaList())

	assert.True(t, ionAttrs(t, hit.Measurement, "PFOA", "413").Matched())
	assert.False(t, ionAttrs(t, miss.Measurement, "PFOA", "413").Matched())
	assert.Equal(t, float32(5), hit.Measurement.MassAccuracy)
}

func TestMeasure_EveryCompoundAndIonPresent(t *testing.T) {
	e := newEngine(t, 0.01)
	list := &types.IonList{Compounds: []types.CompoundGroup{
		{Name: "acetic", Ions: []types.TargetIon{{Name: "59.01385", ExpectedMass: 59.01385}}, Info: []string{"[M-H]-"}},
		{Name: "butyric", Ions: []types.TargetIon{
			{Name: "87.04515", ExpectedMass: 87.04515},
			{Name: "175.0975", ExpectedMass: 175.0975},
		}},
		{Name: "missing", Ions: []types.TargetIon{{Name: "500", ExpectedMass: 500}}},
	}}
	scans := []types.Scan{scan(0, 0.5, peak(59.014, 3), peak(87.045, 8))}

	res := e.Measure(scans, list)

	m := res.Measurement
	require.Len(t, m.Xics, 3)
	assert.Equal(t, []string{"acetic", "butyric", "missing"},
		[]string{m.Xics[0].Name, m.Xics[1].Name, m.Xics[2].Name})
	assert.Equal(t, []string{"87.04515", "175.0975"}, m.Xics[1].Ions.Names())
	assert.Equal(t, []string{"[M-H]-"}, m.Xics[0].IonInfo)
	assert.NotNil(t, m.Xics[2].IonInfo)
	assert.False(t, ionAttrs(t, m, "missing", "500").Matched())
	assert.NotNil(t, m.SpectraData)
	assert.Empty(t, m.SpectraData)
	assert.Equal(t, 2, res.Stats.MatchedIons)
}

func TestMeasure_EmptyInputs(t *testing.T) {
	e := newEngine(t, 0.01)

	res := e.Measure(nil, pfoaList())
	require.Len(t, res.Measurement.Xics, 1)
	assert.False(t, ionAttrs(t, res.Measurement, "PFOA", "413").Matched())

	res = e.Measure([]types.Scan{scan(0, 1, peak(413, 1))}, nil)
	assert.Empty(t, res.Measurement.Xics)
	assert.Equal(t, 1, res.Stats.Scans)
}

func TestMeasure_DoesNotMutateInput(t *testing.T) {
	e := newEngine(t, 0.01)
	peaks := []types.Peak{peak(500, 1), peak(413.001, 2), peak(math.NaN(), 3), peak(100, 4)}
	orig := slices.Clone(peaks)
	scans := []types.Scan{scan(0, 1, peaks...)}

	e.Measure(scans, pfoaList())

	require.Len(t, scans[0].Peaks, len(orig))
	for i := range orig {
		assert.Equal(t, orig[i].Intensity, scans[0].Peaks[i].Intensity)
	}
	assert.Equal(t, 500.0, scans[0].Peaks[0].Mass)
}

func TestMeasure_DeterministicUnderPeakShuffle(t *testing.T) {
	e := newEngine(t, 0.05)
	rng := rand.New(rand.NewSource(7))
	var scans []types.Scan
	for i := range 20 {
		var peaks []types.Peak
		for range 50 {
			peaks = append(peaks, peak(412.9+rng.Float64()*0.2, float64(rng.Intn(10))))
		}
		scans = append(scans, scan(i, float64(i)/10, peaks...))
	}
	want := e.Measure(scans, pfoaList()).Measurement

	for range 5 {
		shuffled := make([]types.Scan, len(scans))
		for i, s := range scans {
			p := slices.Clone(s.Peaks)
			rng.Shuffle(len(p), func(a, b int) { p[a], p[b] = p[b], p[a] })
			shuffled[i] = scan(s.Index, s.RetentionTime, p...)
		}
		assert.Equal(t, want, e.Measure(shuffled, pfoaList()).Measurement)
	}
}

func TestMeasure_Traces(t *testing.T) {
	e := newEngine(t, 0.01, WithTraces())
	scans := []types.Scan{
		scan(0, 1.0, peak(413.001, 10)),
		scan(1, 1.5, peak(300, 99)),
		scan(2, 2.0, peak(413.002, 30)),
	}

	res := e.Measure(scans, pfoaList())

	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	assert.Equal(t, "PFOA", tr.Compound)
	assert.Equal(t, "413", tr.Ion)
	assert.Equal(t, []float64{1.0, 1.5, 2.0}, tr.RetentionTimes)
	assert.Equal(t, []float64{10, 0, 30}, tr.Intensities)

	assert.Nil(t, newEngine(t, 0.01).Measure(scans, pfoaList()).Traces)
}

func TestSelectPeak_BinarySearchBounds(t *testing.T) {
	peaks := []types.Peak{peak(1, 1), peak(2, 5), peak(3, 2), peak(4, 9)}
	p, ok := selectPeak(peaks, 2.5, 2, 3)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Mass)

	_, ok = selectPeak(peaks, 10, 9.5, 10.5)
	assert.False(t, ok)

	_, ok = selectPeak(nil, 1, 0, 2)
	assert.False(t, ok)
}
