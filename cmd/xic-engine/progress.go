// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/pdiddy/xic-engine/internal/batch"
)

// barReporter renders batch progress as a terminal progress bar.
type barReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

var _ batch.ProgressReporter = (*barReporter)(nil)

func newBarReporter(w io.Writer) *barReporter {
	return &barReporter{w: w}
}

func (r *barReporter) OnRunStart(totalFiles int) {
	r.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Measuring files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.w)
		}),
	)
}

func (r *barReporter) OnFileDone(path string, ok bool) {
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *barReporter) OnRunComplete(succeeded, failed int) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
