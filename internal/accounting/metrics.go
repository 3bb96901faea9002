package accounting

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts generated entries and isolated per-record failures.
type Metrics struct {
	generated *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers the GL metrics against registerer; nil uses the default registerer once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_gl_entries_generated_total",
			Help: "Journal entries generated, by reference type.",
		}, []string{"reference_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_gl_records_failed_total",
			Help: "Source records skipped during GL batch generation, by reference type.",
		}, []string{"reference_type"}),
	}
	registerer.MustRegister(m.generated, m.failed)
	return m
}

func (m *Metrics) addGenerated(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.generated.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) addFailed(kind string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(kind).Inc()
}
