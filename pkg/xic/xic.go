// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package xic is the public entry point of the extraction engine: given
// mzML files, a mass accuracy and an ion list, it measures every file in
// parallel and returns one record per file in input order.
package xic

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/xic-engine/internal/batch"
	"github.com/pdiddy/xic-engine/internal/export"
	"github.com/pdiddy/xic-engine/internal/ionlist"
	"github.com/pdiddy/xic-engine/internal/measure"
	"github.com/pdiddy/xic-engine/internal/metrics"
	"github.com/pdiddy/xic-engine/internal/mzml"
	"github.com/pdiddy/xic-engine/pkg/types"
)

type options struct {
	unit        types.ToleranceUnit
	ionListName string
	ionList     types.IonListConfig
	workers     int
	fileTimeout time.Duration
	failFast    bool
	traces      bool
	logger      *zap.Logger
	source      batch.ScanSource
	metrics     *metrics.Collector
	progress    batch.ProgressReporter
	status      io.Writer
}

// Option configures a call to ProcessFiles or ProcessFilesInParallel.
type Option func(*options)

// WithToleranceUnit selects how mass accuracy is interpreted (default Da).
func WithToleranceUnit(u types.ToleranceUnit) Option {
	return func(o *options) { o.unit = u }
}

// WithIonListName resolves a named list instead of a path. It is an error
// to combine it with a non-empty ionListPath.
func WithIonListName(name string) Option {
	return func(o *options) { o.ionListName = name }
}

// WithIonListConfig sets the resolver configuration (library, default
// name, HTTP settings).
func WithIonListConfig(cfg types.IonListConfig) Option {
	return func(o *options) { o.ionList = cfg }
}

// WithWorkers bounds the number of files processed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithFileTimeout bounds the processing time of each file.
func WithFileTimeout(d time.Duration) Option {
	return func(o *options) { o.fileTimeout = d }
}

// WithFailFast aborts the run on the first failing file.
func WithFailFast() Option {
	return func(o *options) { o.failFast = true }
}

// WithTraces keeps the full chromatogram of every ion in ProcessFiles results.
func WithTraces() Option {
	return func(o *options) { o.traces = true }
}

// WithLogger sets the logger used by every stage.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScanSource replaces the mzML reader.
func WithScanSource(src batch.ScanSource) Option {
	return func(o *options) { o.source = src }
}

// WithMetrics records per-file metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithProgress reports per-file progress to p.
func WithProgress(p batch.ProgressReporter) Option {
	return func(o *options) { o.progress = p }
}

// WithStatusWriter writes per-file status lines and a summary to w.
func WithStatusWriter(w io.Writer) Option {
	return func(o *options) { o.status = w }
}

// ProcessFiles resolves the ion list, then loads and measures every file
// in parallel. Ion-list and configuration errors are returned before any
// file is opened. Per-file failures are recorded in the result; the error
// is non-nil only for fail-fast aborts and cancellation.
func ProcessFiles(ctx context.Context, filePaths []string, massAccuracy float32, ionListPath string, opts ...Option) (batch.Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var engineOpts []measure.Option
	if o.traces {
		engineOpts = append(engineOpts, measure.WithTraces())
	}
	engine, err := measure.New(massAccuracy, o.unit, engineOpts...)
	if err != nil {
		return batch.Result{}, fmt.Errorf("configuring measurement: %w", err)
	}

	resolver, err := ionlist.NewResolver(o.ionList, ionlist.WithLogger(o.logger))
	if err != nil {
		return batch.Result{}, err
	}
	defer resolver.Close()

	list, err := resolver.Resolve(ctx, ionlist.Ref{Name: o.ionListName, Path: ionListPath})
	if err != nil {
		return batch.Result{}, err
	}

	source := o.source
	if source == nil {
		source = mzml.NewReader(mzml.WithLogger(o.logger))
	}

	runnerOpts := []batch.Option{batch.WithLogger(o.logger)}
	if o.metrics != nil {
		runnerOpts = append(runnerOpts, batch.WithMetrics(o.metrics))
	}
	if o.progress != nil {
		runnerOpts = append(runnerOpts, batch.WithProgress(o.progress))
	}
	if o.status != nil {
		runnerOpts = append(runnerOpts, batch.WithStatusWriter(o.status))
	}

	runner := batch.NewRunner(source, engine, batch.Config{
		Workers:     o.workers,
		FileTimeout: o.fileTimeout,
		FailFast:    o.failFast,
	}, runnerOpts...)
	return runner.Run(ctx, filePaths, list)
}

// ProcessFilesInParallel measures every file and returns one record per
// file in input order. An empty ionListPath selects the default named list
// ("scfas"). It returns either all records or a single error naming the
// failed file and stage.
func ProcessFilesInParallel(ctx context.Context, filePaths []string, massAccuracy float32, ionListPath string, opts ...Option) ([]export.Record, error) {
	res, err := ProcessFiles(ctx, filePaths, massAccuracy, ionListPath, opts...)
	if err != nil {
		return nil, err
	}
	ms, err := res.Measurements()
	if err != nil {
		return nil, err
	}
	return export.ToRecords(ms), nil
}
