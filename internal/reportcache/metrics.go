package reportcache

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes cache effectiveness per report.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	builds *prometheus.HistogramVec
}

// NewMetrics registers cache collectors on reg. Collectors already registered
// by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_report_cache_hits_total",
			Help: "Report cache hits by report and tier.",
		}, []string{"report", "tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_report_cache_miss_total",
			Help: "Report cache misses by report.",
		}, []string{"report"}),
		builds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_report_build_duration_seconds",
			Help:    "Duration required to build a report on cache miss.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
	}
	var err error
	m.hits = register(reg, m.hits, &err)
	m.misses = register(reg, m.misses, &err)
	m.builds = register(reg, m.builds, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		if *errp == nil {
			*errp = err
		}
	}
	return c
}

func (m *Metrics) hit(report, tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(report, tier).Inc()
}

func (m *Metrics) miss(report string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(report).Inc()
}

func (m *Metrics) observeBuild(report string, d time.Duration) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(report).Observe(d.Seconds())
}
