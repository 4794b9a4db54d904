// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the xic-engine pipeline:
// the scan model produced by scan sources, the ion-list model produced by
// the resolver, and the measurement model produced by the engine.
package types

// Peak is one (observed mass, intensity) pair within a scan.
type Peak struct {
	// Mass is the observed m/z value.
	Mass float64 `json:"mass" yaml:"mass"`

	// Intensity is the detector response; valid values are >= 0.
	Intensity float64 `json:"intensity" yaml:"intensity"`
}

// Scan is a single MS1 spectrum sampled during a chromatographic run.
type Scan struct {
	// Index is the zero-based position of the scan among the file's MS1 scans.
	Index int `json:"index" yaml:"index"`

	// ID is the native spectrum identifier reported by the source, if any.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// RetentionTime is the scan start time in minutes. Non-decreasing across
	// a file's scan sequence.
	RetentionTime float64 `json:"retention_time" yaml:"retention_time"`

	// Peaks holds the scan's peaks in source order.
	Peaks []Peak `json:"peaks" yaml:"peaks"`
}
