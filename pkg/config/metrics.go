package config

import (
	"github.com/marmos91/dittoiso/pkg/metrics"
	promMetrics "github.com/marmos91/dittoiso/pkg/metrics/prometheus"
	"github.com/marmos91/dittoiso/pkg/source/s3"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FTPMetrics is the collector for the FTP adapter (never nil, no-op if disabled)
	FTPMetrics metrics.FTPMetrics

	// SessionMetrics counts image sessions and bytes read (nil if disabled)
	SessionMetrics iso.Metrics

	// S3Metrics observes S3 requests (nil if disabled)
	S3Metrics s3.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// Prometheus-backed collectors are created. Otherwise the server is nil and
// the collectors are no-ops. Must be called at most once per process.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			FTPMetrics: metrics.NewNoopFTPMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:         metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		FTPMetrics:     promMetrics.NewFTPMetrics(),
		SessionMetrics: promMetrics.NewSessionMetrics(),
		S3Metrics:      promMetrics.NewS3Metrics(),
	}
}
