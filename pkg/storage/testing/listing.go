package testing

import (
	"testing"

	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListingTests executes directory listing tests.
func (suite *BackendTestSuite) RunListingTests(t *testing.T) {
	t.Run("List_Root", suite.testListRoot)
	t.Run("List_Nested", suite.testListNested)
	t.Run("List_Deterministic", suite.testListDeterministic)
	t.Run("List_File", suite.testListFile)
	t.Run("List_MatchesStat", suite.testListMatchesStat)
}

func listNames(infos []storage.FileInfo) []string {
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name
	}
	return names
}

func (suite *BackendTestSuite) testListRoot(t *testing.T) {
	b := suite.backend(t)

	infos, err := b.List(testContext(), "/")
	require.NoError(t, err, "List(/) should succeed")

	names := listNames(infos)
	assert.NotContains(t, names, ".")
	assert.NotContains(t, names, "..")
	assert.ElementsMatch(t, fixtureChildren(""), names)
}

func (suite *BackendTestSuite) testListNested(t *testing.T) {
	b := suite.backend(t)

	for _, dir := range FixtureDirs() {
		infos, err := b.List(testContext(), "/"+dir)
		require.NoError(t, err, "List(%s) should succeed", dir)
		assert.ElementsMatch(t, fixtureChildren(dir), listNames(infos), dir)
	}
}

func (suite *BackendTestSuite) testListDeterministic(t *testing.T) {
	b := suite.backend(t)

	first, err := b.List(testContext(), "/DATA/NESTED")
	require.NoError(t, err)
	second, err := b.List(testContext(), "/DATA/NESTED")
	require.NoError(t, err)
	assert.Equal(t, first, second, "listing an unchanged image twice must match")
}

func (suite *BackendTestSuite) testListFile(t *testing.T) {
	b := suite.backend(t)

	_, err := b.List(testContext(), "/HELLO.TXT")
	assert.True(t, storage.IsCode(err, storage.ErrNotDirectory), "expected not a directory, got %v", err)
}

func (suite *BackendTestSuite) testListMatchesStat(t *testing.T) {
	b := suite.backend(t)

	infos, err := b.List(testContext(), "/DATA")
	require.NoError(t, err)

	for _, fi := range infos {
		md, err := b.Stat(testContext(), "/DATA/"+fi.Name)
		require.NoError(t, err, fi.Name)
		assert.Equal(t, *md, fi.Metadata, fi.Name)
	}
}
