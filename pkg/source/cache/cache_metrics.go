package cache

import "time"

// Metrics provides observability for block cache lookups.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics/prometheus)
//   - In-memory counters for testing
type Metrics interface {
	// RecordHit records a block served from the store
	RecordHit()

	// RecordMiss records a block that had to be read from the source
	RecordMiss()

	// ObserveFill records the read-and-store of one missing block
	ObserveFill(bytes int64, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordHit()                        {}
func (noopMetrics) RecordMiss()                       {}
func (noopMetrics) ObserveFill(int64, time.Duration) {}
