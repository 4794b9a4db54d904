// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists extraction runs in SQLite so they can be queried
// and re-integrated later. It is a sink for the command line; the
// extraction core never writes to it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/xic-engine/pkg/types"
)

const defaultMaxResults = 100

// File status values stored in files.status.
const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RunInfo describes one extraction run.
type RunInfo struct {
	ID            string              `json:"id" yaml:"id"`
	Started       time.Time           `json:"started" yaml:"started"`
	Elapsed       time.Duration       `json:"elapsed" yaml:"elapsed"`
	MassAccuracy  float32             `json:"mass_accuracy" yaml:"mass_accuracy"`
	ToleranceUnit types.ToleranceUnit `json:"tolerance_unit" yaml:"tolerance_unit"`
	IonList       string              `json:"ion_list" yaml:"ion_list"`
}

// RunSummary is a stored run with its file counts.
type RunSummary struct {
	RunInfo `yaml:",inline"`
	Files   int `json:"files" yaml:"files"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Store manages the results database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the database at cfg.Path and creates the
// schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("opening results store: no database path configured")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	s := &Store{db: db, maxResults: maxResults}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			elapsed_ms INTEGER,
			mass_accuracy REAL NOT NULL,
			tolerance_unit TEXT NOT NULL,
			ion_list TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT,
			error TEXT,
			scan_count INTEGER,
			matched_ions INTEGER,
			rejected INTEGER,
			duration_ms INTEGER,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS ions (
			run_id TEXT NOT NULL,
			file_idx INTEGER NOT NULL,
			compound_idx INTEGER NOT NULL,
			compound TEXT NOT NULL,
			ion_idx INTEGER NOT NULL,
			ion TEXT NOT NULL,
			intensity REAL,
			retention_time REAL,
			observed_mass REAL,
			PRIMARY KEY (run_id, file_idx, compound_idx, ion_idx),
			FOREIGN KEY (run_id, file_idx) REFERENCES files(run_id, idx) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ions_compound ON ions(compound, ion)`,
		`CREATE TABLE IF NOT EXISTS traces (
			run_id TEXT NOT NULL,
			file_idx INTEGER NOT NULL,
			compound TEXT NOT NULL,
			ion TEXT NOT NULL,
			retention_times TEXT NOT NULL,
			intensities TEXT NOT NULL,
			PRIMARY KEY (run_id, file_idx, compound, ion),
			FOREIGN KEY (run_id, file_idx) REFERENCES files(run_id, idx) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes one run and all of its file results in a single transaction.
func (s *Store) Save(ctx context.Context, run RunInfo, files []types.FileResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, elapsed_ms, mass_accuracy, tolerance_unit, ion_list)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Started.UTC().Format(time.RFC3339Nano), run.Elapsed.Milliseconds(),
		float64(run.MassAccuracy), string(run.ToleranceUnit), run.IonList,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (run_id, idx, path, status, stage, error, scan_count, matched_ions, rejected, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing file insert: %w", err)
	}
	defer fileStmt.Close()

	ionStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ions (run_id, file_idx, compound_idx, compound, ion_idx, ion, intensity, retention_time, observed_mass)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing ion insert: %w", err)
	}
	defer ionStmt.Close()

	traceStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO traces (run_id, file_idx, compound, ion, retention_times, intensities)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trace insert: %w", err)
	}
	defer traceStmt.Close()

	for _, f := range files {
		status := statusOK
		if !f.OK() {
			status = statusFailed
		}
		_, err := fileStmt.ExecContext(ctx,
			run.ID, f.Index, f.Path, status, string(f.Stage), f.Error,
			f.ScanCount, f.MatchedIons, f.Rejected, f.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("inserting file %s: %w", f.Path, err)
		}
		if f.Measurement == nil {
			continue
		}

		for ci, c := range f.Measurement.Xics {
			for ii, e := range c.Ions {
				_, err := ionStmt.ExecContext(ctx,
					run.ID, f.Index, ci, c.Name, ii, e.Name,
					e.Attributes.Intensity.Ptr(),
					e.Attributes.RetentionTime.Ptr(),
					e.Attributes.ObservedMass.Ptr(),
				)
				if err != nil {
					return fmt.Errorf("inserting ion %s/%s of %s: %w", c.Name, e.Name, f.Path, err)
				}
			}
		}

		for _, tr := range f.Traces {
			rts, err := json.Marshal(tr.RetentionTimes)
			if err != nil {
				return fmt.Errorf("encoding retention times of %s/%s in %s: %w", tr.Compound, tr.Ion, f.Path, err)
			}
			ins, err := json.Marshal(tr.Intensities)
			if err != nil {
				return fmt.Errorf("encoding intensities of %s/%s in %s: %w", tr.Compound, tr.Ion, f.Path, err)
			}
			if _, err := traceStmt.ExecContext(ctx, run.ID, f.Index, tr.Compound, tr.Ion, string(rts), string(ins)); err != nil {
				return fmt.Errorf("inserting trace %s/%s of %s: %w", tr.Compound, tr.Ion, f.Path, err)
			}
		}
	}

	return tx.Commit()
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started, r.elapsed_ms, r.mass_accuracy, r.tolerance_unit, r.ion_list,
			COUNT(f.idx), COALESCE(SUM(CASE WHEN f.status = ? THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN files f ON f.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started DESC, r.id`, statusFailed)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			started   string
			elapsedMS int64
			accuracy  float64
			unit      string
			ionList   sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &elapsedMS, &accuracy, &unit, &ionList, &r.Files, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing start time of run %s: %w", r.ID, err)
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.MassAccuracy = float32(accuracy)
		r.ToleranceUnit = types.ToleranceUnit(unit)
		r.IonList = ionList.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRun returns the ID of the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started DESC, id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}

// Trace reads back the stored chromatogram of one ion of one file.
func (s *Store) Trace(ctx context.Context, runID, path, compound, ion string) (types.Chromatogram, error) {
	var rts, ins string
	err := s.db.QueryRowContext(ctx,
		`SELECT t.retention_times, t.intensities
		FROM traces t
		JOIN files f ON f.run_id = t.run_id AND f.idx = t.file_idx
		WHERE t.run_id = ? AND f.path = ? AND t.compound = ? AND t.ion = ?
		ORDER BY t.file_idx
		LIMIT 1`,
		runID, path, compound, ion,
	).Scan(&rts, &ins)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Chromatogram{}, fmt.Errorf("trace %s/%s in %s: %w", compound, ion, path, ErrNotFound)
	}
	if err != nil {
		return types.Chromatogram{}, fmt.Errorf("querying trace: %w", err)
	}

	c := types.Chromatogram{Compound: compound, Ion: ion}
	if err := json.Unmarshal([]byte(rts), &c.RetentionTimes); err != nil {
		return types.Chromatogram{}, fmt.Errorf("decoding retention times: %w", err)
	}
	if err := json.Unmarshal([]byte(ins), &c.Intensities); err != nil {
		return types.Chromatogram{}, fmt.Errorf("decoding intensities: %w", err)
	}
	return c, nil
}
