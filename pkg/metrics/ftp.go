package metrics

import "time"

// FTPMetrics provides observability for the FTP adapter.
//
// This interface is optional - if not provided to the FTP adapter, a no-op
// implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	adapter := ftp.New(config, prometheus.NewFTPMetrics())
//
//	// Without metrics (no-op)
//	adapter := ftp.New(config, nil)
type FTPMetrics interface {
	// RecordOperation records one backend call made on behalf of a client.
	//
	// Parameters:
	//   - operation: "stat", "list", "retrieve", "cwd", "store", ...
	//   - duration: Time taken by the backend
	//   - err: Error returned to the client, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytesSent counts file bytes sent to clients.
	RecordBytesSent(bytes int64)

	// RecordLogin records an authentication attempt.
	//
	// Parameters:
	//   - result: "user", "anonymous" or "failure"
	RecordLogin(result string)

	// RecordConnectionAccepted increments the accepted connection counter.
	RecordConnectionAccepted()

	// RecordConnectionRejected counts connections refused before the
	// greeting.
	//
	// Parameters:
	//   - reason: "rate_limited" or "max_connections"
	RecordConnectionRejected(reason string)

	// RecordConnectionClosed increments the closed connection counter.
	RecordConnectionClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)
}

// NewNoopFTPMetrics returns an FTPMetrics that records nothing.
func NewNoopFTPMetrics() FTPMetrics {
	return noopFTPMetrics{}
}

type noopFTPMetrics struct{}

func (noopFTPMetrics) RecordOperation(string, time.Duration, error) {}
func (noopFTPMetrics) RecordBytesSent(int64)                        {}
func (noopFTPMetrics) RecordLogin(string)                           {}
func (noopFTPMetrics) RecordConnectionAccepted()                    {}
func (noopFTPMetrics) RecordConnectionRejected(string)              {}
func (noopFTPMetrics) RecordConnectionClosed()                      {}
func (noopFTPMetrics) SetActiveConnections(int32)                   {}
