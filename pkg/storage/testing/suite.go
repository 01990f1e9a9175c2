package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoiso/pkg/storage"
)

// BackendTestSuite checks the read-only Backend contract against a known
// tree. It tests observable behaviour only, so it runs unchanged against
// any image format reader or byte source.
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &storagetesting.BackendTestSuite{
//	        NewBackend: func(t *testing.T) storage.Backend {
//	            return openBackendHolding(t, storagetesting.Fixture)
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend returns a fresh backend exposing Fixture under the same
	// paths. The suite closes it.
	NewBackend func(t *testing.T) storage.Backend
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(t *testing.T) {
	t.Run("Resolution", suite.RunResolutionTests)
	t.Run("Listing", suite.RunListingTests)
	t.Run("Retrieval", suite.RunRetrievalTests)
	t.Run("WriteGuard", suite.RunWriteGuardTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

func (suite *BackendTestSuite) backend(t *testing.T) storage.Backend {
	t.Helper()
	b := suite.NewBackend(t)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
