package prometheus

import (
	"time"

	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/source/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	lookups      *prometheus.CounterVec
	fillDuration prometheus.Histogram
	fillBytes    prometheus.Counter
}

// NewCacheMetrics creates a new Prometheus-backed block cache Metrics.
//
// Returns nil if metrics are not enabled. store labels the series
// ("memory", "badger").
func NewCacheMetrics(store string) cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	labels := prometheus.Labels{"store": store}

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittoiso_block_cache_lookups_total",
				Help:        "Total number of image block lookups by result (hit, miss)",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		fillDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:        "dittoiso_block_cache_fill_duration_seconds",
				Help:        "Time to read a missing block from the image source and store it",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		fillBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "dittoiso_block_cache_fill_bytes_total",
				Help:        "Total bytes read from the image source to fill the block cache",
				ConstLabels: labels,
			},
		),
	}
}

func (m *cacheMetrics) RecordHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *cacheMetrics) RecordMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *cacheMetrics) ObserveFill(bytes int64, duration time.Duration) {
	m.fillBytes.Add(float64(bytes))
	m.fillDuration.Observe(duration.Seconds())
}
