package adapter

import (
	"context"

	"github.com/marmos91/dittoiso/pkg/storage"
)

// Adapter represents a protocol-specific server adapter that can be managed
// by the DittoISO server.
//
// Each adapter serves one file transfer protocol on top of a storage
// Factory, opening one backend session per authenticated client.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Factory injection: SetFactory() provides the session factory
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// SetFactory() is called once before Serve(), but Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetFactory injects the factory used to open one backend session per
	// client. Called exactly once before Serve().
	SetFactory(factory storage.Factory)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must be idempotent, safe to call concurrently with
	// Serve() and respect the context timeout.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is configured for.
	Port() int
}
