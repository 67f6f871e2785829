package assemble

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/metric"
)

// assemblerMetrics holds Prometheus metrics for Assembler operations.
type assemblerMetrics struct {
	emitted    *prometheus.CounterVec // by component and kind
	runsOpened *prometheus.CounterVec // by component
	runsClosed *prometheus.CounterVec // by component and exit_status
	resyncs    *prometheus.CounterVec // by component
}

// newAssemblerMetrics creates and registers assembler metrics with the
// provided registry.
func newAssemblerMetrics(registry *metric.MetricsRegistry, componentName string) (*assemblerMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &assemblerMetrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "assemble",
			Name:      "documents_emitted_total",
			Help:      "Total number of documents emitted by the assembler",
		}, []string{"component", "kind"}),

		runsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "assemble",
			Name:      "runs_opened_total",
			Help:      "Total number of derived runs opened",
		}, []string{"component"}),

		runsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "assemble",
			Name:      "runs_closed_total",
			Help:      "Total number of derived runs closed, by exit status",
		}, []string{"component", "exit_status"}),

		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstreams",
			Subsystem: "assemble",
			Name:      "resyncs_total",
			Help:      "Total number of mid-stream resynchronizations",
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "documents_emitted", m.emitted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "runs_opened", m.runsOpened); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "runs_closed", m.runsClosed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "resyncs", m.resyncs); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *assemblerMetrics) recordEmitted(component string, kind document.Kind) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(component, kind.String()).Inc()
}

func (m *assemblerMetrics) recordRunOpened(component string) {
	if m == nil {
		return
	}
	m.runsOpened.WithLabelValues(component).Inc()
}

func (m *assemblerMetrics) recordRunClosed(component, exitStatus string) {
	if m == nil {
		return
	}
	m.runsClosed.WithLabelValues(component, exitStatus).Inc()
}

func (m *assemblerMetrics) recordResync(component string) {
	if m == nil {
		return
	}
	m.resyncs.WithLabelValues(component).Inc()
}
