package iso9660

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/marmos91/dittoiso/pkg/source/memory"
	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handmadeSession(t *testing.T, prefer ...iso.Convention) *iso.Session {
	t.Helper()

	s, err := iso.Open(context.Background(), NewOpener(func(context.Context) (source.Source, error) {
		return memory.New("handmade.iso", handmadeImage(t)), nil
	}, Options{}), iso.Options{Prefer: prefer})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionServesRockRidgeMetadata(t *testing.T) {
	ctx := context.Background()
	s := handmadeSession(t)

	assert.Equal(t, image.Features{Joliet: true, RockRidge: true}, s.Features())

	md, err := s.Stat(ctx, "/Hello.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.KindFile, md.Kind)
	assert.Equal(t, fs.FileMode(0o440), md.Mode)
	assert.Equal(t, uint32(1000), md.UID)
	assert.True(t, helloModified.Equal(md.ModTime), "modified %v", md.ModTime)

	rc, err := s.Retrieve(ctx, "/docs/Readme.txt", 0)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, readmeContent, string(data))

	_, err = s.Stat(ctx, "/HELLO.TXT")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound), "got %v", err)
}

func TestSessionServesSymlinks(t *testing.T) {
	ctx := context.Background()
	s := handmadeSession(t)

	md, err := s.Stat(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, storage.KindSymlink, md.Kind)

	target, err := s.Readlink(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, "/docs/Readme.txt", target)

	_, err = s.Retrieve(ctx, "/link", 0)
	assert.True(t, storage.IsCode(err, storage.ErrNotFile), "got %v", err)
}

func TestSessionServesJolietNames(t *testing.T) {
	ctx := context.Background()
	s := handmadeSession(t, iso.Joliet)

	infos, err := s.List(ctx, "/")
	require.NoError(t, err)

	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"docs", "Hello.txt", "link", longNameRockName}, names)

	_, err = s.Stat(ctx, "/"+longNameRockName)
	assert.NoError(t, err)
}
