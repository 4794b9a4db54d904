// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package measure turns one file's MS1 scans and a resolved ion list into a
// Measurement. For every target ion it selects, in each scan, the most
// intense peak inside the tolerance window and keeps the scan where that
// intensity peaks (the apex).
//
// The engine is pure: it never mutates its inputs, performs no I/O, and
// returns identical output for identical input. One Engine may be shared by
// any number of goroutines.
package measure

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// maxRecordedViolations caps the violations kept in Stats; the count is exact.
const maxRecordedViolations = 32

// Option configures an Engine.
type Option func(*Engine)

// WithTraces makes Measure return the full chromatogram of every ion.
func WithTraces() Option {
	return func(e *Engine) { e.traces = true }
}

// Engine builds Measurements for a fixed tolerance.
type Engine struct {
	massAccuracy float32
	tol          Tolerance
	traces       bool
}

// New returns an engine for the given mass accuracy and tolerance unit.
func New(massAccuracy float32, unit types.ToleranceUnit, opts ...Option) (*Engine, error) {
	if unit == "" {
		unit = types.ToleranceDalton
	}
	tol := Tolerance{Value: float64(massAccuracy), Unit: unit}
	if err := tol.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{massAccuracy: massAccuracy, tol: tol}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tolerance returns the engine's tolerance window.
func (e *Engine) Tolerance() Tolerance { return e.tol }

// MassAccuracy returns the mass accuracy value echoed into every Measurement.
func (e *Engine) MassAccuracy() float32 { return e.massAccuracy }

// ViolationReason describes why a peak or scan was rejected.
type ViolationReason string

const (
	ReasonMass          ViolationReason = "non-finite or non-positive mass"
	ReasonIntensity     ViolationReason = "negative or non-finite intensity"
	ReasonRetentionTime ViolationReason = "non-finite retention time"
)

// Violation records malformed input skipped during matching. Peak is -1
// when the whole scan was rejected.
type Violation struct {
	Scan   int
	Peak   int
	Reason ViolationReason
}

func (v Violation) Error() string {
	if v.Peak < 0 {
		return fmt.Sprintf("scan %d rejected: %s", v.Scan, v.Reason)
	}
	return fmt.Sprintf("scan %d peak %d rejected: %s", v.Scan, v.Peak, v.Reason)
}

// Stats summarizes one Measure call.
type Stats struct {
	Scans       int
	Peaks       int
	Rejected    int
	MatchedIons int
	Violations  []Violation
}

func (s *Stats) reject(v Violation) {
	s.Rejected++
	if len(s.Violations) < maxRecordedViolations {
		s.Violations = append(s.Violations, v)
	}
}

// Result is the output of Measure.
type Result struct {
	Measurement types.Measurement
	Traces      []types.Chromatogram
	Stats       Stats
}

// indexedScan holds a scan's valid peaks in ascending mass order.
type indexedScan struct {
	rt    float64
	peaks []types.Peak
}

// Measure builds the Measurement for one file. The output has exactly one
// Compound per compound group of list, in list order, whether or not any of
// its ions matched.
func (e *Engine) Measure(scans []types.Scan, list *types.IonList) Result {
	var stats Stats
	indexed := indexScans(scans, &stats)

	m := types.Measurement{
		MassAccuracy: e.massAccuracy,
		Xics:         []types.Compound{},
		SpectraData:  []any{},
	}
	var traces []types.Chromatogram
	if list == nil {
		return Result{Measurement: m, Stats: stats}
	}

	var rts []float64
	if e.traces {
		rts = make([]float64, len(indexed))
		for i, s := range indexed {
			rts[i] = s.rt
		}
		traces = make([]types.Chromatogram, 0, list.IonCount())
	}

	m.Xics = make([]types.Compound, 0, len(list.Compounds))
	for _, group := range list.Compounds {
		c := types.Compound{
			Name:    group.Name,
			Ions:    make(types.IonSet, 0, len(group.Ions)),
			IonInfo: slices.Clone(group.Info),
		}
		if c.IonInfo == nil {
			c.IonInfo = []string{}
		}
		for _, ion := range group.Ions {
			var intensities []float64
			if e.traces {
				intensities = make([]float64, len(indexed))
			}
			attrs := e.measureIon(indexed, ion, intensities)
			if attrs.Matched() {
				stats.MatchedIons++
			}
			c.Ions = append(c.Ions, types.IonEntry{Name: ion.Name, Attributes: attrs})
			if e.traces {
				traces = append(traces, types.Chromatogram{
					Compound:       group.Name,
					Ion:            ion.Name,
					RetentionTimes: slices.Clone(rts),
					Intensities:    intensities,
				})
			}
		}
		m.Xics = append(m.Xics, c)
	}

	return Result{Measurement: m, Traces: traces, Stats: stats}
}

// measureIon finds the apex of one ion across all scans. When trace is
// non-nil the selected intensity of every scan is written into it.
func (e *Engine) measureIon(scans []indexedScan, ion types.TargetIon, trace []float64) types.IonAttributes {
	if !finite(ion.ExpectedMass) || ion.ExpectedMass <= 0 {
		return types.IonAttributes{}
	}
	lo, hi := e.tol.Window(ion.ExpectedMass)

	var (
		apex      types.Peak
		apexRT    float64
		apexFound bool
	)
	for i, s := range scans {
		p, ok := selectPeak(s.peaks, ion.ExpectedMass, lo, hi)
		if !ok {
			continue
		}
		if trace != nil {
			trace[i] = p.Intensity
		}
		// Strict comparison keeps the earliest scan on equal intensity.
		if !apexFound || p.Intensity > apex.Intensity {
			apex, apexRT, apexFound = p, s.rt, true
		}
	}
	if !apexFound {
		return types.IonAttributes{}
	}
	return types.IonAttributes{
		Intensity:     types.Some(apex.Intensity),
		RetentionTime: types.Some(apexRT),
		ObservedMass:  types.Some(apex.Mass),
	}
}

// selectPeak returns the best candidate in [lo, hi] of mass-sorted peaks:
// highest intensity, then closest to expected, then lowest mass.
func selectPeak(peaks []types.Peak, expected, lo, hi float64) (types.Peak, bool) {
	i := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mass >= lo })
	var (
		best  types.Peak
		found bool
	)
	for ; i < len(peaks) && peaks[i].Mass <= hi; i++ {
		if !found || better(peaks[i], best, expected) {
			best, found = peaks[i], true
		}
	}
	return best, found
}

func better(a, b types.Peak, expected float64) bool {
	if a.Intensity != b.Intensity {
		return a.Intensity > b.Intensity
	}
	da, db := math.Abs(a.Mass-expected), math.Abs(b.Mass-expected)
	if da != db {
		return da < db
	}
	return a.Mass < b.Mass
}

// indexScans drops malformed scans and peaks and returns every scan's
// peaks sorted by mass. Input slices are never reordered in place.
func indexScans(scans []types.Scan, stats *Stats) []indexedScan {
	out := make([]indexedScan, 0, len(scans))
	for si, s := range scans {
		stats.Scans++
		stats.Peaks += len(s.Peaks)
		if !finite(s.RetentionTime) {
			stats.reject(Violation{Scan: si, Peak: -1, Reason: ReasonRetentionTime})
			continue
		}

		peaks := s.Peaks
		owned := false
		if slices.ContainsFunc(peaks, func(p types.Peak) bool { _, bad := checkPeak(p); return bad }) {
			filtered := make([]types.Peak, 0, len(peaks))
			for pi, p := range peaks {
				if reason, bad := checkPeak(p); bad {
					stats.reject(Violation{Scan: si, Peak: pi, Reason: reason})
					continue
				}
				filtered = append(filtered, p)
			}
			peaks, owned = filtered, true
		}
		if !slices.IsSortedFunc(peaks, byMass) {
			if !owned {
				peaks = slices.Clone(peaks)
			}
			slices.SortFunc(peaks, byMass)
		}
		out = append(out, indexedScan{rt: s.RetentionTime, peaks: peaks})
	}
	return out
}

func checkPeak(p types.Peak) (ViolationReason, bool) {
	if !finite(p.Mass) || p.Mass <= 0 {
		return ReasonMass, true
	}
	if !finite(p.Intensity) || p.Intensity < 0 {
		return ReasonIntensity, true
	}
	return "", false
}

func byMass(a, b types.Peak) int {
	return cmp.Compare(a.Mass, b.Mass)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
