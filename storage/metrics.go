package storage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/metric"
)

// sinkMetrics holds Prometheus metrics for SinkNode operations.
type sinkMetrics struct {
	persisted *prometheus.CounterVec // by component and kind
	blobs     *prometheus.CounterVec // by component and field
	failures  *prometheus.CounterVec // by component
}

// newSinkMetrics creates and registers sink metrics with the provided
// registry.
func newSinkMetrics(registry *metric.MetricsRegistry, componentName string) (*sinkMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &sinkMetrics{
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "storage",
			Name:      "documents_persisted_total",
			Help:      "Total number of documents persisted",
		}, []string{"component", "kind"}),

		blobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "storage",
			Name:      "blobs_written_total",
			Help:      "Total number of values offloaded to blob storage",
		}, []string{"component", "field"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "storage",
			Name:      "persist_failures_total",
			Help:      "Total number of persistence failures",
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "documents_persisted", m.persisted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "blobs_written", m.blobs); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "persist_failures", m.failures); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *sinkMetrics) recordPersisted(component string, kind document.Kind) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(component, kind.String()).Inc()
}

func (m *sinkMetrics) recordBlobWritten(component, field string) {
	if m == nil {
		return
	}
	m.blobs.WithLabelValues(component, field).Inc()
}

func (m *sinkMetrics) recordPersistFailure(component string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(component).Inc()
}
