package testing

import (
	"io"
	"testing"

	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRetrievalTests executes file read tests.
func (suite *BackendTestSuite) RunRetrievalTests(t *testing.T) {
	t.Run("Retrieve_Content", suite.testRetrieveContent)
	t.Run("Retrieve_Offset", suite.testRetrieveOffset)
	t.Run("Retrieve_PastEnd", suite.testRetrievePastEnd)
	t.Run("RetrieveRange", suite.testRetrieveRange)
	t.Run("Retrieve_Directory", suite.testRetrieveDirectory)
	t.Run("Retrieve_NotFound", suite.testRetrieveNotFound)
}

// mustRetrieve reads a whole stream and fails the test if it errors.
func mustRetrieve(t *testing.T, b storage.Backend, p string, offset, length int64) string {
	t.Helper()
	rc, err := b.RetrieveRange(testContext(), p, offset, length)
	require.NoError(t, err, "RetrieveRange(%s, %d, %d) should succeed", p, offset, length)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err, "reading %s should succeed", p)
	return string(data)
}

func (suite *BackendTestSuite) testRetrieveContent(t *testing.T) {
	b := suite.backend(t)

	for _, p := range FixtureFiles() {
		assert.Equal(t, Fixture[p], mustRetrieve(t, b, "/"+p, 0, -1), p)
	}
}

func (suite *BackendTestSuite) testRetrieveOffset(t *testing.T) {
	b := suite.backend(t)

	want := Fixture["DATA/NESTED/BLOB.BIN"]
	for _, off := range []int64{1, 2047, 2048, 4999} {
		assert.Equal(t, want[off:], mustRetrieve(t, b, "/DATA/NESTED/BLOB.BIN", off, -1), "offset %d", off)
	}
}

func (suite *BackendTestSuite) testRetrievePastEnd(t *testing.T) {
	b := suite.backend(t)

	for _, p := range FixtureFiles() {
		size := int64(len(Fixture[p]))
		for _, off := range []int64{size, size + 1, size + 4096} {
			assert.Empty(t, mustRetrieve(t, b, "/"+p, off, -1), "%s at offset %d", p, off)
		}
	}
}

func (suite *BackendTestSuite) testRetrieveRange(t *testing.T) {
	b := suite.backend(t)

	want := Fixture["DATA/NESTED/BLOB.BIN"]
	assert.Equal(t, want[2040:2060], mustRetrieve(t, b, "/DATA/NESTED/BLOB.BIN", 2040, 20))
	assert.Equal(t, want[4990:], mustRetrieve(t, b, "/DATA/NESTED/BLOB.BIN", 4990, 100))
	assert.Empty(t, mustRetrieve(t, b, "/DATA/NESTED/BLOB.BIN", 10, 0))
}

func (suite *BackendTestSuite) testRetrieveDirectory(t *testing.T) {
	b := suite.backend(t)

	_, err := b.Retrieve(testContext(), "/DOCS", 0)
	assert.True(t, storage.IsCode(err, storage.ErrNotFile), "expected not a file, got %v", err)
}

func (suite *BackendTestSuite) testRetrieveNotFound(t *testing.T) {
	b := suite.backend(t)

	_, err := b.Retrieve(testContext(), "/NOPE.TXT", 0)
	assert.True(t, storage.IsNotFound(err), "expected not found, got %v", err)
}
