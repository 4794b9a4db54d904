// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xic

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xic-engine/internal/batch"
	"github.com/pdiddy/xic-engine/internal/ionlist"
	"github.com/pdiddy/xic-engine/internal/mzml"
	"github.com/pdiddy/xic-engine/internal/mzml/mzmltest"
	"github.com/pdiddy/xic-engine/pkg/types"
)

const pfasList = `{
  "PFAS": {
    "PFOA": {"ions": [413.0], "info": ["[M-H]-"]},
    "PFOS": {"ions": [498.93]}
  }
}`

func writeList(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pfas.json")
	require.NoError(t, os.WriteFile(path, []byte(pfasList), 0o644))
	return path
}

func ions(t *testing.T, rec map[string]any, compound string) map[string]map[string]float64 {
	t.Helper()
	for _, x := range rec["xics"].([]map[string]any) {
		if x["name"] == compound {
			return x["ions"].(map[string]map[string]float64)
		}
	}
	t.Fatalf("compound %s missing", compound)
	return nil
}

func TestProcessFilesInParallel(t *testing.T) {
	dir := t.TempDir()
	list := writeList(t, dir)

	hit := mzmltest.Write(t, dir, "hit.mzML", []types.Scan{
		{RetentionTime: 5.0, Peaks: []types.Peak{{Mass: 413.0005, Intensity: 400}}},
		{RetentionTime: 5.2, Peaks: []types.Peak{{Mass: 413.0005, Intensity: 1000}}},
	}, mzmltest.Options{Zlib: true})
	miss := mzmltest.Write(t, dir, "miss.mzML", []types.Scan{
		{RetentionTime: 5.2, Peaks: []types.Peak{{Mass: 413.0050, Intensity: 1000}}},
	}, mzmltest.Options{Seconds: true, Gzip: true})

	recs, err := ProcessFilesInParallel(context.Background(), []string{hit, miss}, 0.002, list)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, float32(0.002), recs[0]["mass_accuracy"])
	assert.Equal(t, []any{}, recs[0]["spectra_data"])
	assert.Equal(t, map[string]float64{
		"intensity":      1000,
		"retention_time": 5.2,
		"observed_mass":  413.0005,
	}, ions(t, recs[0], "PFOA")["413"])
	assert.Empty(t, ions(t, recs[0], "PFOS")["498.93"])

	assert.Empty(t, ions(t, recs[1], "PFOA")["413"])
}

func TestProcessFilesInParallel_DefaultList(t *testing.T) {
	dir := t.TempDir()
	path := mzmltest.Write(t, dir, "scfa.mzML", []types.Scan{
		{RetentionTime: 1.5, Peaks: []types.Peak{{Mass: 59.0139, Intensity: 77}}},
	}, mzmltest.Options{})

	recs, err := ProcessFilesInParallel(context.Background(), []string{path}, 0.001, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 77.0, ions(t, recs[0], "Acetic acid")["59.01385"]["intensity"])
}

func TestProcessFilesInParallel_ResolutionErrorBeforeWork(t *testing.T) {
	src := &countingSource{}
	_, err := ProcessFilesInParallel(context.Background(), []string{"a.mzML"}, 0.002,
		filepath.Join(t.TempDir(), "absent.json"), WithScanSource(src))

	var rerr *ionlist.ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Zero(t, src.calls)
}

func TestProcessFilesInParallel_BadAccuracy(t *testing.T) {
	_, err := ProcessFilesInParallel(context.Background(), nil, -1, "")
	assert.Error(t, err)
}

func TestProcessFilesInParallel_FailedFileNamesStage(t *testing.T) {
	dir := t.TempDir()
	good := mzmltest.Write(t, dir, "good.mzML", []types.Scan{{RetentionTime: 1}}, mzmltest.Options{})
	bad := filepath.Join(dir, "bad.mzML")
	require.NoError(t, os.WriteFile(bad, []byte("<mzML><spectrum"), 0o644))

	_, err := ProcessFilesInParallel(context.Background(), []string{good, bad}, 0.002, writeList(t, dir))

	var ferr *batch.FileError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, bad, ferr.Path)
	assert.Equal(t, 1, ferr.Index)
	assert.Equal(t, types.StageLoad, ferr.Stage)
	var lerr *mzml.ScanLoadError
	assert.True(t, errors.As(err, &lerr))
}

func TestProcessFiles_IsolationAndStatus(t *testing.T) {
	dir := t.TempDir()
	good := mzmltest.Write(t, dir, "good.mzML", []types.Scan{
		{RetentionTime: 1, Peaks: []types.Peak{{Mass: 413, Intensity: 5}}},
	}, mzmltest.Options{})
	missing := filepath.Join(dir, "missing.mzML")
	var status bytes.Buffer

	res, err := ProcessFiles(context.Background(), []string{missing, good}, 0.002, writeList(t, dir),
		WithWorkers(2), WithTraces(), WithStatusWriter(&status))
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.False(t, res.Files[0].OK())
	assert.True(t, res.Files[1].OK())
	assert.Len(t, res.Files[1].Traces, 2)
	assert.Contains(t, status.String(), "Batch summary: 1 measured, 1 failed (total: 2)")
}

func TestProcessFiles_NameAndPathConflict(t *testing.T) {
	_, err := ProcessFiles(context.Background(), nil, 0.002, "x.json", WithIonListName("scfas"))
	assert.ErrorIs(t, err, ionlist.ErrAmbiguous)
}

type countingSource struct{ calls int }

func (c *countingSource) LoadScans(context.Context, string) ([]types.Scan, error) {
	c.calls++
	return nil, nil
}
