package sinks

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/studysync/internal/progress"
)

// PrometheusObserver exports sync metrics via Prometheus. It owns the
// collectors for hydrates, flushes, retries and the pending-set size.
type PrometheusObserver struct {
	hydrates      *prometheus.CounterVec
	flushes       *prometheus.CounterVec
	batchSize     prometheus.Histogram
	flushDuration *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	pending       prometheus.Gauge
}

// NewPrometheusObserver registers the collectors against the provided registry.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		hydrates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_hydrates_total",
			Help: "Progress hydrates partitioned by source and result.",
		}, []string{"source", "result"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_flushes_total",
			Help: "Batch flushes partitioned by result.",
		}, []string{"result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studysync_flush_batch_size",
			Help:    "Updates per batch flush.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studysync_flush_duration_seconds",
			Help:    "Batch flush request duration partitioned by result.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysync_flush_retries_total",
			Help: "Automatic flush retries partitioned by attempt.",
		}, []string{"attempt"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studysync_pending_updates",
			Help: "Updates queued and not yet persisted.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		o.hydrates,
		o.flushes,
		o.batchSize,
		o.flushDuration,
		o.retries,
		o.pending,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return o, nil
}

// Hydrated implements progress.Observer.
func (o *PrometheusObserver) Hydrated(source, result string) {
	o.hydrates.WithLabelValues(source, result).Inc()
}

// Flushed implements progress.Observer.
func (o *PrometheusObserver) Flushed(size int, result string, dur time.Duration) {
	o.flushes.WithLabelValues(result).Inc()
	if result == progress.ResultOK {
		o.batchSize.Observe(float64(size))
	}
	if dur > 0 {
		o.flushDuration.WithLabelValues(result).Observe(dur.Seconds())
	}
}

// RetryScheduled implements progress.Observer.
func (o *PrometheusObserver) RetryScheduled(attempt int, _ time.Duration) {
	o.retries.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

// PendingChanged implements progress.Observer.
func (o *PrometheusObserver) PendingChanged(n int) {
	o.pending.Set(float64(n))
}
