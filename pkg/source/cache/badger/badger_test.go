package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, Config{Path: dir})
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "image@4096/0")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "image@4096/0", []byte("sector data")))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Config{Path: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	block, ok, err := reopened.Get(ctx, "image@4096/0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sector data", string(block))
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	block, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(block))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}
