// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/xic-engine/internal/batch"
	"github.com/pdiddy/xic-engine/internal/export"
	"github.com/pdiddy/xic-engine/internal/measure"
	"github.com/pdiddy/xic-engine/internal/metrics"
	"github.com/pdiddy/xic-engine/internal/store"
	"github.com/pdiddy/xic-engine/pkg/types"
	"github.com/pdiddy/xic-engine/pkg/xic"
)

var extractCmd = &cobra.Command{
	Use:   "extract [files|dirs...]",
	Short: "Measure target ions in mzML files",
	Long: `Extract loads every mzML file, measures each ion of the ion list and
writes one result document per file in input order. Directories are
searched recursively for files matching --pattern.

The ion list is a JSON/YAML file or URL (--ion-list) or a named list from
the library (--ion-list-name). Without either the default list is used.

A file that fails to load is reported in its own slot; the other files
are still measured. Use --fail-fast to abort on the first failure.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Float32("mass-accuracy", 0.002, "mass tolerance applied to every ion")
	extractCmd.Flags().String("tolerance-unit", "da", "tolerance unit: da or ppm")
	extractCmd.Flags().String("ion-list", "", "ion-list file or http(s) URL")
	extractCmd.Flags().String("ion-list-name", "", "named ion list from the library")
	extractCmd.Flags().String("library", "", "ion-list library file replacing the built-in one")
	extractCmd.Flags().Int("workers", 0, "files processed concurrently (default: number of CPUs)")
	extractCmd.Flags().Duration("file-timeout", 0, "maximum processing time per file (0 disables)")
	extractCmd.Flags().Bool("fail-fast", false, "abort the batch on the first failing file")
	extractCmd.Flags().String("format", "json", "output format: json, jsonl or yaml")
	extractCmd.Flags().StringP("out", "o", "", "output file (default: stdout)")
	extractCmd.Flags().String("pattern", batch.DefaultPattern, "glob for files found in directories")
	extractCmd.Flags().Bool("traces", false, "keep full chromatograms (stored with --db)")
	extractCmd.Flags().String("db", "", "SQLite results database to append the run to")
	extractCmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this file")
	extractCmd.Flags().Bool("progress", false, "show a progress bar on stderr")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more mzML files or directories")
	}

	cfg, err := loadConfig(cmd, map[string]string{
		"extraction.mass_accuracy":  "mass-accuracy",
		"extraction.tolerance_unit": "tolerance-unit",
		"extraction.workers":        "workers",
		"extraction.file_timeout":   "file-timeout",
		"extraction.fail_fast":      "fail-fast",
		"extraction.keep_traces":    "traces",
		"ion_list.library":          "library",
		"store.path":                "db",
		"output":                    "format",
	})
	if err != nil {
		return err
	}

	unit, err := measure.ParseUnit(string(cfg.Extraction.ToleranceUnit))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(string(cfg.Output))
	if err != nil {
		return err
	}

	pattern, _ := cmd.Flags().GetString("pattern")
	paths, err := batch.Discover(args, pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files matching %q found", pattern)
	}

	ionListPath, _ := cmd.Flags().GetString("ion-list")
	ionListName, _ := cmd.Flags().GetString("ion-list-name")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	showProgress, _ := cmd.Flags().GetBool("progress")

	opts := []xic.Option{
		xic.WithToleranceUnit(unit),
		xic.WithIonListName(ionListName),
		xic.WithIonListConfig(cfg.IonList),
		xic.WithWorkers(cfg.Extraction.Workers),
		xic.WithFileTimeout(cfg.Extraction.FileTimeout),
		xic.WithLogger(logger),
		xic.WithStatusWriter(os.Stderr),
	}
	if cfg.Extraction.FailFast {
		opts = append(opts, xic.WithFailFast())
	}
	if cfg.Extraction.KeepTraces {
		opts = append(opts, xic.WithTraces())
	}
	var collector *metrics.Collector
	if metricsFile != "" {
		collector = metrics.NewCollector()
		opts = append(opts, xic.WithMetrics(collector))
	}
	if showProgress {
		opts = append(opts, xic.WithProgress(newBarReporter(os.Stderr)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := xic.ProcessFiles(ctx, paths, cfg.Extraction.MassAccuracy, ionListPath, opts...)
	if err != nil {
		return err
	}

	if err := writeResults(cmd, format, res.Files); err != nil {
		return err
	}

	if cfg.Store.Path != "" {
		if err := saveRun(ctx, cfg, unit, ionListLabel(ionListName, ionListPath, cfg.IonList), res); err != nil {
			return err
		}
	}
	if collector != nil {
		if err := collector.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}

	if res.HasFailures() {
		return fmt.Errorf("%d file(s) failed extraction", res.Failed())
	}
	return nil
}

func writeResults(cmd *cobra.Command, format types.OutputFormat, files []types.FileResult) error {
	out, _ := cmd.Flags().GetString("out")
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, files); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

func saveRun(ctx context.Context, cfg types.Config, unit types.ToleranceUnit, ionList string, res batch.Result) error {
	s, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	run := store.RunInfo{
		ID:            res.RunID,
		Started:       res.Started,
		Elapsed:       res.Elapsed,
		MassAccuracy:  cfg.Extraction.MassAccuracy,
		ToleranceUnit: unit,
		IonList:       ionList,
	}
	if err := s.Save(ctx, run, res.Files); err != nil {
		return fmt.Errorf("saving run %s: %w", res.RunID, err)
	}
	fmt.Fprintf(os.Stderr, "Saved run %s to %s\n", res.RunID, cfg.Store.Path)
	return nil
}

// ionListLabel names the list a run used, for the results database.
func ionListLabel(name, path string, cfg types.IonListConfig) string {
	switch {
	case path != "":
		return path
	case name != "":
		return name
	case cfg.DefaultName != "":
		return cfg.DefaultName
	}
	return types.DefaultIonListName
}
