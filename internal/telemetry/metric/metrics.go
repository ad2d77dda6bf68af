// Package metric provides Prometheus metrics for Lumidex.
//
// Metrics cover snapshot operations (dump and restore durations,
// document throughput) and indexing counters. Storage-level gauges are
// registered separately by the storage environment.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lumidex"

// Metrics holds the application's metric instruments.
type Metrics struct {
	// DumpDuration observes wall time of completed snapshot dumps.
	DumpDuration prometheus.Histogram

	// RestoreDuration observes wall time of completed snapshot restores.
	RestoreDuration prometheus.Histogram

	// DocumentsDumped counts documents written to snapshot streams.
	DocumentsDumped prometheus.Counter

	// DocumentsIndexed counts documents indexed, including restores.
	DocumentsIndexed prometheus.Counter

	// SnapshotErrors counts failed dump/restore operations by phase.
	SnapshotErrors *prometheus.CounterVec
}

// New creates the metric instruments and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		DumpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "dump_duration_seconds",
			Help:      "Wall time of completed snapshot dumps",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		RestoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "restore_duration_seconds",
			Help:      "Wall time of completed snapshot restores",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		DocumentsDumped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "documents_dumped_total",
			Help:      "Documents written to snapshot streams",
		}),
		DocumentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "documents_indexed_total",
			Help:      "Documents indexed, including restores",
		}),
		SnapshotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "errors_total",
			Help:      "Failed snapshot operations",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.DumpDuration,
		m.RestoreDuration,
		m.DocumentsDumped,
		m.DocumentsIndexed,
		m.SnapshotErrors,
	)
	return m
}
