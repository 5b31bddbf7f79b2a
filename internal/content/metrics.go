package content

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinechat",
		Subsystem: "content",
		Name:      "requests_total",
		Help:      "Upstream metadata requests by service and final outcome.",
	}, []string{"service", "outcome"})

	upstreamRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinechat",
		Subsystem: "content",
		Name:      "retries_total",
		Help:      "Upstream metadata request retries by service.",
	}, []string{"service"})
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{upstreamRequests, upstreamRetries}
}
