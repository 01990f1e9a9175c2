package testing

import (
	"testing"

	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResolutionTests executes path resolution and projection tests.
func (suite *BackendTestSuite) RunResolutionTests(t *testing.T) {
	t.Run("Stat_Root", suite.testStatRoot)
	t.Run("Stat_Files", suite.testStatFiles)
	t.Run("Stat_Directories", suite.testStatDirectories)
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("Stat_ThroughFile", suite.testStatThroughFile)
	t.Run("Cwd", suite.testCwd)
}

func (suite *BackendTestSuite) testStatRoot(t *testing.T) {
	b := suite.backend(t)

	for _, p := range []string{"", "/", "/.."} {
		md, err := b.Stat(testContext(), p)
		require.NoError(t, err, "Stat(%q) should succeed", p)
		assert.True(t, md.IsDir(), "root should be a directory")
	}
}

func (suite *BackendTestSuite) testStatFiles(t *testing.T) {
	b := suite.backend(t)

	for _, p := range FixtureFiles() {
		md, err := b.Stat(testContext(), "/"+p)
		require.NoError(t, err, "Stat(%s) should succeed", p)
		assert.Equal(t, storage.KindFile, md.Kind, p)
		assert.Equal(t, uint64(len(Fixture[p])), md.Size, p)
		assert.Zero(t, md.Mode&0o222, "%s should not be writable", p)
	}
}

func (suite *BackendTestSuite) testStatDirectories(t *testing.T) {
	b := suite.backend(t)

	for _, p := range FixtureDirs() {
		md, err := b.Stat(testContext(), "/"+p)
		require.NoError(t, err, "Stat(%s) should succeed", p)
		assert.Equal(t, storage.KindDirectory, md.Kind, p)
		assert.Zero(t, md.Size, "directories report size 0")
	}
}

func (suite *BackendTestSuite) testStatNotFound(t *testing.T) {
	b := suite.backend(t)

	for _, p := range []string{"/NOPE", "/DOCS/NOPE.TXT", "/NOPE/README.TXT"} {
		_, err := b.Stat(testContext(), p)
		assert.True(t, storage.IsNotFound(err), "Stat(%s): expected not found, got %v", p, err)
	}
}

func (suite *BackendTestSuite) testStatThroughFile(t *testing.T) {
	b := suite.backend(t)

	_, err := b.Stat(testContext(), "/DOCS/README.TXT/extra")
	assert.True(t, storage.IsCode(err, storage.ErrNotDirectory), "expected not a directory, got %v", err)
}

func (suite *BackendTestSuite) testCwd(t *testing.T) {
	b := suite.backend(t)

	assert.NoError(t, b.Cwd(testContext(), "/DATA/NESTED"))
	assert.True(t, storage.IsCode(b.Cwd(testContext(), "/HELLO.TXT"), storage.ErrNotDirectory))
	assert.True(t, storage.IsNotFound(b.Cwd(testContext(), "/NOPE")))
}
