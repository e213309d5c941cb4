package indexer

import (
	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every client; the upstream label tells instances apart.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "indexer",
		Name:      "requests_total",
		Help:      "Total number of upstream requests by outcome",
	}, []string{"upstream", "outcome", "status_class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "indexer",
		Name:      "retries_total",
		Help:      "Total number of retried upstream requests",
	}, []string{"upstream"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "indexer",
		Name:      "request_duration_seconds",
		Help:      "Duration of single upstream HTTP attempts",
		Buckets:   prometheus.DefBuckets,
	}, []string{"upstream"})
)

func statusClass(code int) string {
	switch {
	case code == 0:
		return "transport"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
