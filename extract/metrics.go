package extract

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/metric"
)

// extractorMetrics holds Prometheus metrics for Extractor operations.
type extractorMetrics struct {
	consumed   *prometheus.CounterVec // by component and kind
	forwarded  *prometheus.CounterVec // by component
	violations *prometheus.CounterVec // by component
}

// newExtractorMetrics creates and registers extractor metrics with the
// provided registry.
func newExtractorMetrics(registry *metric.MetricsRegistry, componentName string) (*extractorMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &extractorMetrics{
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "extract",
			Name:      "documents_consumed_total",
			Help:      "Total number of documents consumed by the extractor",
		}, []string{"component", "kind"}),

		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "extract",
			Name:      "values_forwarded_total",
			Help:      "Total number of extracted values forwarded downstream",
		}, []string{"component"}),

		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "extract",
			Name:      "protocol_violations_total",
			Help:      "Total number of documents rejected by protocol validation",
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "documents_consumed", m.consumed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "values_forwarded", m.forwarded); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "protocol_violations", m.violations); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *extractorMetrics) recordConsumed(component string, kind document.Kind) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(component, kind.String()).Inc()
}

func (m *extractorMetrics) recordForwarded(component string) {
	if m == nil {
		return
	}
	m.forwarded.WithLabelValues(component).Inc()
}

func (m *extractorMetrics) recordViolation(component string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(component).Inc()
}
