// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus metrics of an extraction run. Each
// Collector owns a private registry, so collectors never collide and tests
// can create as many as they like.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xic"

// File outcome label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Collector records per-file extraction metrics.
type Collector struct {
	registry *prometheus.Registry

	Files         *prometheus.CounterVec
	FileDuration  prometheus.Histogram
	PeaksRejected prometheus.Counter
	IonsMatched   prometheus.Counter
}

// NewCollector creates a collector and registers its metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Files processed, by outcome.",
			},
			[]string{"status"},
		),
		FileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Time to load and measure one file.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		PeaksRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "peaks_rejected_total",
				Help:      "Malformed peaks and scans skipped during matching.",
			},
		),
		IonsMatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ions_matched_total",
				Help:      "Target ions with at least one matching peak.",
			},
		),
	}
	c.registry.MustRegister(c.Files, c.FileDuration, c.PeaksRejected, c.IonsMatched)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveFile records the outcome of one file.
func (c *Collector) ObserveFile(ok bool, elapsed time.Duration, rejected, matched int) {
	status := StatusOK
	if !ok {
		status = StatusFailed
	}
	c.Files.WithLabelValues(status).Inc()
	c.FileDuration.Observe(elapsed.Seconds())
	c.PeaksRejected.Add(float64(rejected))
	c.IonsMatched.Add(float64(matched))
}

// WriteTextfile writes the current metrics in the text exposition format,
// for the node-exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
