// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch runs the measurement engine over many files in parallel.
// Each file is an independent task on a bounded worker pool; results are
// collected into a slot per input index, so output order always matches
// input order regardless of completion order. The ion list is shared
// read-only across tasks and nothing else is shared between them.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/xic-engine/internal/measure"
	"github.com/pdiddy/xic-engine/internal/metrics"
	"github.com/pdiddy/xic-engine/pkg/types"
)

// ScanSource supplies the MS1 scans of one file.
type ScanSource interface {
	LoadScans(ctx context.Context, path string) ([]types.Scan, error)
}

// Config controls the worker pool and failure policy.
type Config struct {
	// Workers bounds concurrent file tasks; 0 uses runtime.NumCPU().
	Workers int

	// FileTimeout bounds one file's processing; 0 disables it.
	FileTimeout time.Duration

	// FailFast aborts the run on the first failing file.
	FailFast bool
}

// ConfigFrom extracts the runner settings from an extraction config.
func ConfigFrom(cfg types.ExtractionConfig) Config {
	return Config{Workers: cfg.Workers, FileTimeout: cfg.FileTimeout, FailFast: cfg.FailFast}
}

// FileError reports the failure of one file, naming its position, path
// and the stage that failed.
type FileError struct {
	Index int
	Path  string
	Stage types.Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %d (%s) failed at %s: %v", e.Index, e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result holds the outcome of a run, one FileResult per input path in
// input order.
type Result struct {
	RunID   string
	Started time.Time
	Elapsed time.Duration
	Files   []types.FileResult
}

// Total returns the number of files in the run.
func (r Result) Total() int { return len(r.Files) }

// Succeeded returns the number of measured files.
func (r Result) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of files that did not produce a measurement.
func (r Result) Failed() int { return r.Total() - r.Succeeded() }

// HasFailures reports whether any file failed.
func (r Result) HasFailures() bool { return r.Failed() > 0 }

// Measurements returns the measurements in input order, or a *FileError
// for the first failed file in input order.
func (r Result) Measurements() ([]types.Measurement, error) {
	out := make([]types.Measurement, 0, len(r.Files))
	for _, f := range r.Files {
		if !f.OK() {
			return nil, fileError(f)
		}
		out = append(out, *f.Measurement)
	}
	return out, nil
}

func fileError(f types.FileResult) *FileError {
	err := f.Err
	if err == nil {
		err = errors.New("no measurement produced")
	}
	return &FileError{Index: f.Index, Path: f.Path, Stage: f.Stage, Err: err}
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records per-file metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithProgress reports progress to p.
func WithProgress(p ProgressReporter) Option {
	return func(r *Runner) { r.progress = p }
}

// WithStatusWriter writes one status line per file and a summary to w
// after the run completes.
func WithStatusWriter(w io.Writer) Option {
	return func(r *Runner) { r.status = w }
}

// Runner processes files with a shared scan source and engine.
type Runner struct {
	source   ScanSource
	engine   *measure.Engine
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	progress ProgressReporter
	status   io.Writer

	progressMu sync.Mutex
}

// NewRunner creates a runner.
func NewRunner(source ScanSource, engine *measure.Engine, cfg Config, opts ...Option) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	r := &Runner{
		source:   source,
		engine:   engine,
		cfg:      cfg,
		logger:   zap.NewNop(),
		progress: NoOpProgressReporter{},
		status:   io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every path against list.
//
// With per-file isolation (the default) a failing file is recorded in its
// own slot and Run returns a nil error. With FailFast the first failure
// cancels in-flight and pending files and Run returns it as a *FileError.
// If ctx is cancelled Run returns ctx.Err(). The returned Result is always
// fully populated, with cancelled files marked as failed.
func (r *Runner) Run(ctx context.Context, paths []string, list *types.IonList) (Result, error) {
	if list == nil {
		return Result{}, errors.New("running batch: nil ion list")
	}

	res := Result{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Files:   make([]types.FileResult, len(paths)),
	}
	logger := r.logger.With(zap.String("run_id", res.RunID))
	logger.Info("starting run",
		zap.Int("files", len(paths)),
		zap.Int("workers", r.cfg.Workers),
		zap.String("ion_list", list.Name),
		zap.Int("ions", list.IonCount()),
		zap.Bool("fail_fast", r.cfg.FailFast),
	)
	r.progress.OnRunStart(len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			fr := r.processFile(gctx, i, path, list, logger)
			res.Files[i] = fr

			r.progressMu.Lock()
			r.progress.OnFileDone(path, fr.OK())
			r.progressMu.Unlock()

			if !fr.OK() && r.cfg.FailFast {
				return fileError(fr)
			}
			return nil
		})
	}
	runErr := g.Wait()
	res.Elapsed = time.Since(res.Started)

	r.progress.OnRunComplete(res.Succeeded(), res.Failed())
	r.writeStatus(res)
	logger.Info("run complete",
		zap.Int("succeeded", res.Succeeded()),
		zap.Int("failed", res.Failed()),
		zap.Duration("elapsed", res.Elapsed),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// processFile loads and measures one file. It never returns an error:
// failures are recorded in the result.
func (r *Runner) processFile(ctx context.Context, index int, path string, list *types.IonList, logger *zap.Logger) (fr types.FileResult) {
	start := time.Now()
	fr = types.FileResult{Index: index, Path: path}
	defer func() {
		fr.Duration = time.Since(start)
		if r.metrics != nil {
			r.metrics.ObserveFile(fr.OK(), fr.Duration, fr.Rejected, fr.MatchedIons)
		}
		if fr.OK() {
			logger.Debug("file measured",
				zap.Int("index", index),
				zap.String("file", path),
				zap.Int("scans", fr.ScanCount),
				zap.Int("matched_ions", fr.MatchedIons),
				zap.Int("rejected_peaks", fr.Rejected),
				zap.Duration("elapsed", fr.Duration),
			)
		} else {
			logger.Warn("file failed",
				zap.Int("index", index),
				zap.String("file", path),
				zap.String("stage", string(fr.Stage)),
				zap.Error(fr.Err),
			)
		}
	}()

	if r.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FileTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return fail(fr, types.StageLoad, err)
	}
	scans, err := r.source.LoadScans(ctx, path)
	if err != nil {
		return fail(fr, types.StageLoad, err)
	}
	fr.ScanCount = len(scans)

	mres, err := r.measure(scans, list)
	if err != nil {
		return fail(fr, types.StageMeasure, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(fr, types.StageMeasure, err)
	}

	fr.Measurement = &mres.Measurement
	fr.Traces = mres.Traces
	fr.MatchedIons = mres.Stats.MatchedIons
	fr.Rejected = mres.Stats.Rejected
	if fr.Rejected > 0 {
		logger.Debug("skipped malformed input",
			zap.String("file", path),
			zap.Int("rejected", fr.Rejected),
			zap.Errors("examples", violationErrors(mres.Stats.Violations)),
		)
	}
	return fr
}

// measure runs the engine, converting a panic into an error so one bad
// file cannot take down its siblings.
func (r *Runner) measure(scans []types.Scan, list *types.IonList) (res measure.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("measurement panicked: %v", p)
		}
	}()
	return r.engine.Measure(scans, list), nil
}

func fail(fr types.FileResult, stage types.Stage, err error) types.FileResult {
	fr.Stage = stage
	fr.Err = err
	fr.Error = err.Error()
	fr.Measurement = nil
	return fr
}

func violationErrors(vs []measure.Violation) []error {
	errs := make([]error, len(vs))
	for i, v := range vs {
		errs[i] = v
	}
	return errs
}

// writeStatus prints one line per file in input order, then a summary.
func (r *Runner) writeStatus(res Result) {
	w := r.status
	for _, f := range res.Files {
		if f.OK() {
			fmt.Fprintf(w, "measured: %s (%d scans, %d ions matched)\n", f.Path, f.ScanCount, f.MatchedIons)
			continue
		}
		fmt.Fprintf(w, "failed:   %s (%s: %s)\n", f.Path, f.Stage, f.Error)
	}
	fmt.Fprintf(w, "\nBatch summary: %d measured, %d failed (total: %d) in %s\n",
		res.Succeeded(), res.Failed(), res.Total(), res.Elapsed.Round(time.Millisecond))
}
