// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFile(t *testing.T) {
	c := NewCollector()

	c.ObserveFile(true, 200*time.Millisecond, 3, 7)
	c.ObserveFile(true, time.Second, 0, 2)
	c.ObserveFile(false, 10*time.Millisecond, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Files.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Files.WithLabelValues(StatusFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.PeaksRejected))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.IonsMatched))
	assert.Equal(t, 1, testutil.CollectAndCount(c.FileDuration))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.ObserveFile(true, time.Millisecond, 0, 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IonsMatched))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveFile(true, time.Second, 1, 4)

	path := filepath.Join(t.TempDir(), "xic.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `xic_files_total{status="ok"} 1`)
	assert.Contains(t, string(data), "xic_ions_matched_total 4")
	assert.Contains(t, string(data), "xic_file_duration_seconds_bucket")
}
