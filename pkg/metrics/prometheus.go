package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ingested   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	errorsTot  *prometheus.CounterVec
	lastPrice  *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
	bufferSize *prometheus.GaugeVec
	broadcast  *prometheus.CounterVec
}

// New creates a recorder registered on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		ingested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_events_ingested_total",
				Help: "Events applied to the state store, by kind",
			},
			[]string{"kind"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_events_rejected_total",
				Help: "Events rejected before reaching the state store",
			},
			[]string{"kind", "reason"},
		),
		errorsTot: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bufferSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_buffer_size",
				Help: "Current number of records held per in-memory buffer",
			},
			[]string{"buffer"},
		),
		broadcast: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_broadcast_total",
				Help: "Insight events offered to subscribers, by outcome",
			},
			[]string{"sink", "outcome"},
		),
	}
}

func (r *Recorder) RecordEventIngested(kind string) {
	r.ingested.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordEventRejected(kind, reason string) {
	r.rejected.WithLabelValues(kind, reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTot.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordBufferSize(buffer string, size int) {
	r.bufferSize.WithLabelValues(buffer).Set(float64(size))
}

func (r *Recorder) RecordBroadcast(sink string, delivered bool) {
	outcome := "dropped"
	if delivered {
		outcome = "delivered"
	}
	r.broadcast.WithLabelValues(sink, outcome).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordEventIngested(string)         {}
func (Nop) RecordEventRejected(string, string) {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLastPrice(string, float64)    {}
func (Nop) RecordLatency(string, float64)      {}
func (Nop) RecordBufferSize(string, int)       {}
func (Nop) RecordBroadcast(string, bool)       {}
