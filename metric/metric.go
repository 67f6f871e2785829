// Package metric manages Prometheus metric registration for docstreams
// components. Engine-wide metrics live in Metrics; components register
// their own collectors through the MetricsRegistry.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docstreams"

// Metrics contains the engine-wide metrics shared by every pipeline.
type Metrics struct {
	// Document flow metrics
	DocumentsConsumed  *prometheus.CounterVec
	DocumentsEmitted   *prometheus.CounterVec
	ValuesForwarded    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec

	// Run lifecycle metrics
	RunsOpened         *prometheus.CounterVec
	RunsClosed         *prometheus.CounterVec
	RunsResynced       *prometheus.CounterVec
	ProtocolViolations *prometheus.CounterVec

	// Persistence metrics
	DocumentsPersisted *prometheus.CounterVec
	BlobsWritten       *prometheus.CounterVec
	PersistFailures    *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a Metrics instance with every engine-wide collector.
func NewMetrics() *Metrics {
	return &Metrics{
		DocumentsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "documents",
				Name:      "consumed_total",
				Help:      "Total number of documents consumed, by node and kind",
			},
			[]string{"node", "kind"},
		),

		DocumentsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "documents",
				Name:      "emitted_total",
				Help:      "Total number of documents emitted, by node and kind",
			},
			[]string{"node", "kind"},
		),

		ValuesForwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "values",
				Name:      "forwarded_total",
				Help:      "Total number of extracted values forwarded downstream",
			},
			[]string{"node"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Document processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node", "kind"},
		),

		RunsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runs",
				Name:      "opened_total",
				Help:      "Total number of runs opened",
			},
			[]string{"node"},
		),

		RunsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runs",
				Name:      "closed_total",
				Help:      "Total number of runs closed, by exit status",
			},
			[]string{"node", "exit_status"},
		),

		RunsResynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runs",
				Name:      "resynced_total",
				Help:      "Total number of mid-stream run resynchronizations",
			},
			[]string{"node"},
		),

		ProtocolViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "violations_total",
				Help:      "Total number of document protocol violations",
			},
			[]string{"node"},
		),

		DocumentsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "documents_persisted_total",
				Help:      "Total number of documents persisted, by sink and kind",
			},
			[]string{"sink", "kind"},
		),

		BlobsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "blobs_written_total",
				Help:      "Total number of blob values offloaded, by sink and field",
			},
			[]string{"sink", "field"},
		),

		PersistFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "persist_failures_total",
				Help:      "Total number of persistence failures",
			},
			[]string{"sink"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DocumentsConsumed,
		m.DocumentsEmitted,
		m.ValuesForwarded,
		m.ProcessingDuration,
		m.RunsOpened,
		m.RunsClosed,
		m.RunsResynced,
		m.ProtocolViolations,
		m.DocumentsPersisted,
		m.BlobsWritten,
		m.PersistFailures,
		m.NATSConnected,
		m.NATSReconnects,
	}
}
