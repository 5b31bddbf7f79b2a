package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	activeTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinechat",
		Subsystem: "orchestrator",
		Name:      "active_tasks",
		Help:      "Agent runs currently registered.",
	})

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinechat",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Finished agent runs by outcome.",
	}, []string{"outcome"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cinechat",
		Subsystem: "orchestrator",
		Name:      "run_duration_seconds",
		Help:      "Agent run duration by outcome.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90, 180},
	}, []string{"outcome"})
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{activeTasks, runsTotal, runDuration}
}
