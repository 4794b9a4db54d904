// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/pdiddy/xic-engine/internal/measure"
	"github.com/pdiddy/xic-engine/internal/store"
	"github.com/pdiddy/xic-engine/pkg/types"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query a results database written by extract --db",
	Long: `Results reads ion measurements back from a results database. Without
--run the latest run is shown. Filters narrow the rows by file, compound
and ion.

With --area-from and --area-to the stored chromatogram of every row is
integrated over that retention-time window. Chromatograms are only stored
when the run was extracted with --traces. With --slope (and optionally
--intercept) each area is converted to a concentration through the linear
calibration curve area = slope*concentration + intercept.`,
	RunE: runResults,
}

// --- runs subcommand ---

var resultsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, newest first",
	RunE:  runResultsRuns,
}

func init() {
	resultsCmd.PersistentFlags().String("db", "", "SQLite results database")
	resultsCmd.PersistentFlags().Bool("json", false, "output as JSON")

	resultsCmd.Flags().String("run", "", "run ID (default: latest run)")
	resultsCmd.Flags().String("file", "", "filter by input file path")
	resultsCmd.Flags().String("compound", "", "filter by compound name")
	resultsCmd.Flags().String("ion", "", "filter by ion name")
	resultsCmd.Flags().Bool("matched", false, "only ions with a match")
	resultsCmd.Flags().Int("max-results", 0, "maximum rows (default from config, 100)")
	resultsCmd.Flags().Float64("area-from", 0, "integration window start (minutes)")
	resultsCmd.Flags().Float64("area-to", 0, "integration window end (minutes)")
	resultsCmd.Flags().Float64("slope", 0, "calibration curve slope (requires an area window)")
	resultsCmd.Flags().Float64("intercept", 0, "calibration curve intercept")

	resultsCmd.AddCommand(resultsRunsCmd)
	rootCmd.AddCommand(resultsCmd)
}

// resultRow is an ion row with its optional integrated area and
// concentration.
type resultRow struct {
	store.IonRow
	Area          types.Optional[float64] `json:"area,omitzero"`
	Concentration types.Optional[float64] `json:"concentration,omitzero"`
}

func openResultStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd, map[string]string{"store.path": "db"})
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no results database: pass --db or set store.path")
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	return store.NewStore(cfg.Store)
}

func runResults(cmd *cobra.Command, args []string) error {
	s, err := openResultStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	opts := store.QueryOptions{}
	opts.RunID, _ = cmd.Flags().GetString("run")
	opts.File, _ = cmd.Flags().GetString("file")
	opts.Compound, _ = cmd.Flags().GetString("compound")
	opts.Ion, _ = cmd.Flags().GetString("ion")
	opts.MatchedOnly, _ = cmd.Flags().GetBool("matched")
	opts.MaxResults, _ = cmd.Flags().GetInt("max-results")

	if opts.RunID == "" {
		opts.RunID, err = s.LatestRun(ctx)
		if err != nil {
			return err
		}
	}

	rows, err := s.Query(ctx, opts)
	if err != nil {
		return err
	}

	out := make([]resultRow, len(rows))
	for i, r := range rows {
		out[i] = resultRow{IonRow: r}
	}

	integrate := cmd.Flags().Changed("area-from") || cmd.Flags().Changed("area-to")
	quantify := cmd.Flags().Changed("slope") || cmd.Flags().Changed("intercept")
	var curve measure.Curve
	if quantify {
		if !integrate {
			return fmt.Errorf("--slope and --intercept need an integration window: pass --area-from and --area-to")
		}
		slope, _ := cmd.Flags().GetFloat64("slope")
		intercept, _ := cmd.Flags().GetFloat64("intercept")
		curve, err = measure.NewCurve(slope, intercept)
		if err != nil {
			return err
		}
	}

	if integrate {
		from, _ := cmd.Flags().GetFloat64("area-from")
		to, _ := cmd.Flags().GetFloat64("area-to")
		if err := integrateRows(ctx, s, out, from, to); err != nil {
			return err
		}
	}
	if quantify {
		quantifyRows(out, curve)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(out)
	}
	printResultRows(opts.RunID, out, integrate, quantify)
	return nil
}

func integrateRows(ctx context.Context, s *store.Store, rows []resultRow, from, to float64) error {
	if to < from {
		return fmt.Errorf("--area-to (%g) is before --area-from (%g)", to, from)
	}
	for i := range rows {
		r := &rows[i]
		tr, err := s.Trace(ctx, r.RunID, r.File, r.Compound, r.Ion)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		area, err := measure.Integrate(tr, from, to)
		if err != nil {
			return fmt.Errorf("integrating %s/%s in %s: %w", r.Compound, r.Ion, r.File, err)
		}
		r.Area = types.Some(area)
	}
	return nil
}

// quantifyRows sets the concentration of every row that has an area.
func quantifyRows(rows []resultRow, curve measure.Curve) {
	for i := range rows {
		if area, ok := rows[i].Area.Get(); ok {
			rows[i].Concentration = types.Some(curve.Concentration(area))
		}
	}
}

func printResultRows(runID string, rows []resultRow, withArea, withConc bool) {
	if len(rows) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("Run %s\n\n", runID)
	header := fmt.Sprintf("%-30s  %-20s  %-12s  %12s  %8s  %12s",
		"File", "Compound", "Ion", "Intensity", "RT", "m/z")
	if withArea {
		header += fmt.Sprintf("  %12s", "Area")
	}
	if withConc {
		header += fmt.Sprintf("  %14s", "Concentration")
	}
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))

	for _, r := range rows {
		line := fmt.Sprintf("%-30s  %-20s  %-12s  %12s  %8s  %12s",
			truncate(r.File, 30), truncate(r.Compound, 20), truncate(r.Ion, 12),
			formatOptional(r.Intensity, "%.0f"),
			formatOptional(r.RetentionTime, "%.3f"),
			formatOptional(r.ObservedMass, "%.5f"))
		if withArea {
			line += fmt.Sprintf("  %12s", formatOptional(r.Area, "%.1f"))
		}
		if withConc {
			line += fmt.Sprintf("  %14s", formatOptional(r.Concentration, "%.6f"))
		}
		fmt.Println(line)
	}

	fmt.Printf("\n%d rows\n", len(rows))
}

func runResultsRuns(cmd *cobra.Command, args []string) error {
	s, err := openResultStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Runs(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs stored.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-12s  %5s  %6s  %s\n", "Run", "Started", "Accuracy", "Files", "Failed", "Ion list")
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %-12s  %5d  %6d  %s\n",
			r.ID, r.Started.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%g %s", r.MassAccuracy, r.ToleranceUnit),
			r.Files, r.Failed, r.IonList)
	}
	return nil
}

func formatOptional(v types.Optional[float64], format string) string {
	x, ok := v.Get()
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, x)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
