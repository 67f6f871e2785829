package natsdocs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/metric"
)

// sourceMetrics holds Prometheus metrics for Source operations.
type sourceMetrics struct {
	received          *prometheus.CounterVec // by component and kind
	decodeErrors      *prometheus.CounterVec // by component
	propagationErrors *prometheus.CounterVec // by component
}

func newSourceMetrics(registry *metric.MetricsRegistry, componentName string) (*sourceMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &sourceMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "nats_input",
			Name:      "documents_received_total",
			Help:      "Total documents received from NATS",
		}, []string{"component", "kind"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "nats_input",
			Name:      "decode_errors_total",
			Help:      "Total messages dropped because they failed to decode",
		}, []string{"component"}),

		propagationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "nats_input",
			Name:      "propagation_errors_total",
			Help:      "Total documents whose downstream propagation failed",
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "documents_received", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "decode_errors", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "propagation_errors", m.propagationErrors); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *sourceMetrics) recordReceived(component string, kind document.Kind) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(component, kind.String()).Inc()
}

func (m *sourceMetrics) recordDecodeError(component string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(component).Inc()
}

func (m *sourceMetrics) recordPropagationError(component string) {
	if m == nil {
		return
	}
	m.propagationErrors.WithLabelValues(component).Inc()
}
