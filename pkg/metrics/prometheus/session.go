package prometheus

import (
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMetrics is the Prometheus implementation of iso.Metrics.
type sessionMetrics struct {
	opened    prometheus.Counter
	active    prometheus.Gauge
	bytesRead prometheus.Counter
}

// NewSessionMetrics creates a new Prometheus-backed iso.Metrics.
//
// Returns nil if metrics are not enabled.
func NewSessionMetrics() iso.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		opened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoiso_sessions_opened_total",
				Help: "Total number of image sessions opened",
			},
		),
		active: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittoiso_sessions_active",
				Help: "Current number of open image sessions",
			},
		),
		bytesRead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoiso_file_bytes_read_total",
				Help: "Total file bytes read from the image",
			},
		),
	}
}

func (m *sessionMetrics) SessionOpened() {
	m.opened.Inc()
	m.active.Inc()
}

func (m *sessionMetrics) SessionClosed() {
	m.active.Dec()
}

func (m *sessionMetrics) RecordBytesRead(n int) {
	m.bytesRead.Add(float64(n))
}
