package prometheus

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/marmos91/dittoiso/pkg/source/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// s3Metrics observes the requests the S3 image source makes. Image reads
// are ranged GETs, so the size of each range is tracked next to latency.
type s3Metrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rangeBytes prometheus.Histogram
	bytesRead  *prometheus.CounterVec
}

// NewS3Metrics returns the Prometheus s3.Metrics, or nil when metrics are
// disabled.
func NewS3Metrics() s3.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	factory := promauto.With(metrics.GetRegistry())

	return &s3Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittoiso_s3_requests_total",
			Help: "S3 requests issued by the image source, by API call and outcome",
		}, []string{"operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittoiso_s3_request_duration_seconds",
			Help:    "Latency of S3 requests issued by the image source",
			Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 8), // 5ms .. ~3s
		}, []string{"operation"}),
		rangeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dittoiso_s3_range_bytes",
			Help:    "Bytes returned by one ranged GetObject",
			Buckets: prometheus.ExponentialBuckets(2048, 4, 7), // one sector .. 8MiB
		}),
		bytesRead: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittoiso_s3_bytes_total",
			Help: "Bytes read from S3",
		}, []string{"operation"}),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.requests.WithLabelValues(operation, outcome(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	m.bytesRead.WithLabelValues(operation).Add(float64(bytes))
	m.rangeBytes.Observe(float64(bytes))
}

// outcome buckets an S3 error into a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, source.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
