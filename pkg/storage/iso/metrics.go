package iso

// Metrics records session activity.
//
// Implementations must be safe for concurrent use: every session of a
// factory shares one Metrics value.
type Metrics interface {
	// SessionOpened is called once per successfully opened session
	SessionOpened()

	// SessionClosed is called once when a session is closed
	SessionClosed()

	// RecordBytesRead counts file bytes handed to clients
	RecordBytesRead(n int)
}

type noopMetrics struct{}

func (noopMetrics) SessionOpened()      {}
func (noopMetrics) SessionClosed()      {}
func (noopMetrics) RecordBytesRead(int) {}
