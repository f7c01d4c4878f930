package sla

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type jobMetrics struct {
	runsTotal       *prometheus.CounterVec
	processedTotal  prometheus.Counter
	violationsTotal prometheus.Counter
	runDuration     prometheus.Histogram
}

func newJobMetrics() *jobMetrics {
	m := &jobMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kineticapi",
			Subsystem: "sla",
			Name:      "compute_runs_total",
			Help:      "Count of SLA compute job runs",
		}, []string{"outcome"}),
		processedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kineticapi",
			Subsystem: "sla",
			Name:      "definitions_processed_total",
			Help:      "SLA definitions attempted across all runs",
		}),
		violationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kineticapi",
			Subsystem: "sla",
			Name:      "violations_written_total",
			Help:      "Violation rows written across all runs",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kineticapi",
			Subsystem: "sla",
			Name:      "compute_run_duration_seconds",
			Help:      "Wall-clock duration of SLA compute runs",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	collectors := []prometheus.Collector{m.runsTotal, m.processedTotal, m.violationsTotal, m.runDuration}
	for i, collector := range collectors {
		if err := prometheus.Register(collector); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch i {
				case 0:
					m.runsTotal = are.ExistingCollector.(*prometheus.CounterVec)
				case 1:
					m.processedTotal = are.ExistingCollector.(prometheus.Counter)
				case 2:
					m.violationsTotal = are.ExistingCollector.(prometheus.Counter)
				case 3:
					m.runDuration = are.ExistingCollector.(prometheus.Histogram)
				}
			}
		}
	}
	return m
}

func (m *jobMetrics) observeRun(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *jobMetrics) addProcessed(processed, violations int) {
	if m == nil {
		return
	}
	m.processedTotal.Add(float64(processed))
	m.violationsTotal.Add(float64(violations))
}
