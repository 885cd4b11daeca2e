package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	InsightsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpulse",
			Subsystem: "insights",
			Name:      "latency_seconds",
			Help:      "Latency of insights endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	InsightsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "insights",
			Name:      "errors_total",
			Help:      "Errors by insights endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "insights",
			Name:      "cache_lookups_total",
			Help:      "Cached insight lookups by family and result",
		},
		[]string{"family", "result"},
	)
)

// Register registers the collectors on the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(InsightsLatency, InsightsErrors, CacheLookups)
	})
}

// Observe records one endpoint call.
func Observe(endpoint string, start time.Time, err error) {
	InsightsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		InsightsErrors.WithLabelValues(endpoint).Inc()
	}
}

func CacheLookup(family string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(family, result).Inc()
}
