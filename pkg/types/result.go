// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage names the processing step at which a file failed.
type Stage string

const (
	StageLoad    Stage = "load"
	StageMeasure Stage = "measure"
)

// FileResult is the outcome of processing one input file. Exactly one of
// Measurement and Err is set.
type FileResult struct {
	// Index is the file's position in the input sequence.
	Index int `json:"index" yaml:"index"`

	// Path is the input file identifier.
	Path string `json:"file" yaml:"file"`

	// Measurement is the engine output on success.
	Measurement *Measurement `json:"measurement,omitempty" yaml:"measurement,omitempty"`

	// Traces holds the per-ion chromatograms when trace extraction is enabled.
	Traces []Chromatogram `json:"traces,omitempty" yaml:"traces,omitempty"`

	// ScanCount is the number of MS1 scans loaded.
	ScanCount int `json:"scan_count" yaml:"scan_count"`

	// MatchedIons is the number of target ions with a match.
	MatchedIons int `json:"matched_ions" yaml:"matched_ions"`

	// Rejected counts malformed peaks and scans skipped during matching.
	Rejected int `json:"rejected_peaks" yaml:"rejected_peaks"`

	// Duration is the wall time spent on the file.
	Duration time.Duration `json:"-" yaml:"-"`

	// Stage identifies where processing failed. Empty on success.
	Stage Stage `json:"stage,omitempty" yaml:"stage,omitempty"`

	// Error records the failure message. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the underlying failure.
	Err error `json:"-" yaml:"-"`
}

// OK reports whether the file was measured.
func (r FileResult) OK() bool {
	return r.Err == nil && r.Measurement != nil
}
