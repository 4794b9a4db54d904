// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

// ProgressReporter receives progress events from a Runner. Calls are
// serialized by the runner.
type ProgressReporter interface {
	// OnRunStart is called once before any file is processed.
	OnRunStart(totalFiles int)

	// OnFileDone is called as each file finishes, in completion order.
	OnFileDone(path string, ok bool)

	// OnRunComplete is called once after every file has finished.
	OnRunComplete(succeeded, failed int)
}

// NoOpProgressReporter discards all progress events.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnRunStart(int)          {}
func (NoOpProgressReporter) OnFileDone(string, bool) {}
func (NoOpProgressReporter) OnRunComplete(int, int)  {}
