package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// RunLifecycleTests executes session lifecycle tests.
func (suite *BackendTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("Close_Idempotent", suite.testCloseIdempotent)
	t.Run("Sessions_Independent", suite.testSessionsIndependent)
}

func (suite *BackendTestSuite) testCloseIdempotent(t *testing.T) {
	b := suite.NewBackend(t)

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func (suite *BackendTestSuite) testSessionsIndependent(t *testing.T) {
	first := suite.NewBackend(t)
	second := suite.backend(t)

	assert.NoError(t, first.Close())
	assert.Equal(t, Fixture["HELLO.TXT"], mustRetrieve(t, second, "/HELLO.TXT", 0, -1))
}
