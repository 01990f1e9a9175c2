package memory

import (
	"context"
	"io"
	"testing"

	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	open := NewOpener("fixture", []byte("hello world"))

	src, err := open(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(11), src.Size())
	assert.Equal(t, "memory://fixture", src.Name())

	buf := make([]byte, 5)
	n, err := src.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	n, err = src.ReadAt(ctx, buf, 9)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ld", string(buf[:n]))

	other, err := open(ctx)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	_, err = src.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, source.ErrClosed)

	// closing one handle leaves the others usable
	_, err = other.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestReadFull(t *testing.T) {
	ctx := context.Background()
	src := New("full", []byte("abcdefgh"))

	buf := make([]byte, 8)
	n, err := source.ReadFull(ctx, src, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = source.ReadFull(ctx, src, buf, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
}
