package testing

import (
	"strings"
	"testing"

	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteGuardTests checks that every mutation is refused.
func (suite *BackendTestSuite) RunWriteGuardTests(t *testing.T) {
	t.Run("Mutations_Denied", suite.testMutationsDenied)
	t.Run("Mutations_NoChange", suite.testMutationsNoChange)
}

func (suite *BackendTestSuite) testMutationsDenied(t *testing.T) {
	b := suite.backend(t)
	ctx := testContext()

	for _, p := range []string{"/HELLO.TXT", "/DOCS", "/NOPE", "/NOPE/DEEPER", "/"} {
		_, err := b.Store(ctx, p, strings.NewReader("x"), 0)
		assert.True(t, storage.IsPermissionDenied(err), "Store(%s): %v", p, err)
		assert.True(t, storage.IsPermissionDenied(b.Delete(ctx, p)), "Delete(%s)", p)
		assert.True(t, storage.IsPermissionDenied(b.Rename(ctx, p, "/RENAMED")), "Rename(%s)", p)
		assert.True(t, storage.IsPermissionDenied(b.Mkdir(ctx, p)), "Mkdir(%s)", p)
		assert.True(t, storage.IsPermissionDenied(b.Rmdir(ctx, p)), "Rmdir(%s)", p)
		assert.True(t, storage.IsPermissionDenied(b.SetAttrs(ctx, p, storage.Attrs{})), "SetAttrs(%s)", p)
	}
}

func (suite *BackendTestSuite) testMutationsNoChange(t *testing.T) {
	b := suite.backend(t)
	ctx := testContext()

	before, err := b.List(ctx, "/")
	require.NoError(t, err)

	_, _ = b.Store(ctx, "/HELLO.TXT", strings.NewReader("overwritten"), 0)
	_ = b.Delete(ctx, "/DOCS/README.TXT")
	_ = b.Rename(ctx, "/HELLO.TXT", "/BYE.TXT")
	_ = b.Mkdir(ctx, "/NEW")

	after, err := b.List(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, Fixture["HELLO.TXT"], mustRetrieve(t, b, "/HELLO.TXT", 0, -1))
	assert.Equal(t, Fixture["DOCS/README.TXT"], mustRetrieve(t, b, "/DOCS/README.TXT", 0, -1))
}
