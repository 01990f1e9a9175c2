package s3

import "time"

// Metrics provides observability for S3 image reads.
//
// Implementations live in pkg/metrics/prometheus. A nil Metrics in
// S3SourceConfig disables collection.
type Metrics interface {
	// ObserveOperation records one S3 request (GetObject, HeadObject)
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
