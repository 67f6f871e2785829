package natsdocs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/metric"
)

// publisherMetrics holds Prometheus metrics for Publisher operations.
type publisherMetrics struct {
	published     *prometheus.CounterVec // by component and kind
	publishErrors *prometheus.CounterVec // by component
}

func newPublisherMetrics(registry *metric.MetricsRegistry, componentName string) (*publisherMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &publisherMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "nats_output",
			Name:      "documents_published_total",
			Help:      "Total documents published to NATS",
		}, []string{"component", "kind"}),

		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "nats_output",
			Name:      "publish_errors_total",
			Help:      "Total documents that failed to publish",
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "documents_published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "publish_errors", m.publishErrors); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *publisherMetrics) recordPublished(component string, kind document.Kind) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(component, kind.String()).Inc()
}

func (m *publisherMetrics) recordPublishError(component string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(component).Inc()
}
