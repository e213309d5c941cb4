package cache

import (
	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of fresh cache hits",
	}, []string{"store"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of cache misses or expired entries",
	}, []string{"store"})

	staleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Subsystem: "cache",
		Name:      "stale_served_total",
		Help:      "Total number of stale entries served after an upstream failure",
	}, []string{"store"})
)

// RecordStale counts a stale value served by a caller that manages its own fallback
func RecordStale(store string) {
	staleTotal.WithLabelValues(store).Inc()
}
