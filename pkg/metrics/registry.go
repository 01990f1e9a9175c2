// Package metrics holds the metric interfaces of DittoISO components, the
// process-wide Prometheus registry and the HTTP server exposing it.
//
// Metrics are off until InitRegistry is called. Constructors in the
// prometheus sub-package return nil while the registry is unset, and every
// component treats a nil metrics value as a no-op:
//
//	metrics.InitRegistry()
//	ftpMetrics := prometheus.NewFTPMetrics()
//	adapter := ftp.New(cfg, ftpMetrics) // or nil
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the registry and registers the Go runtime and
// process collectors on it. Later calls do nothing.
func InitRegistry() {
	registryOnce.Do(func() {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "dittoiso"}),
		)
		registry = r
	})
}

// GetRegistry returns the registry, nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return registry != nil
}
