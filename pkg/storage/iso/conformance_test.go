package iso

import (
	"context"
	"io"
	"path"
	"testing"

	"github.com/marmos91/dittoiso/pkg/image/diskfs"
	"github.com/marmos91/dittoiso/pkg/image/diskfs/isotest"
	isoReader "github.com/marmos91/dittoiso/pkg/image/iso9660"
	"github.com/marmos91/dittoiso/pkg/image/memory"
	"github.com/marmos91/dittoiso/pkg/source/cache"
	cachememory "github.com/marmos91/dittoiso/pkg/source/cache/memory"
	sourcefs "github.com/marmos91/dittoiso/pkg/source/fs"
	"github.com/marmos91/dittoiso/pkg/storage"
	storagetesting "github.com/marmos91/dittoiso/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureImage lays the shared fixture out as an in-memory image with
// versioned primary identifiers.
func fixtureImage() *memory.Image {
	b := memory.NewBuilder()
	dirs := map[string]*memory.Dir{".": b.Root()}

	var dirFor func(p string) *memory.Dir
	dirFor = func(p string) *memory.Dir {
		if d, ok := dirs[p]; ok {
			return d
		}
		d := dirFor(path.Dir(p)).Dir(path.Base(p))
		dirs[p] = d
		return d
	}

	for _, p := range storagetesting.FixtureFiles() {
		dirFor(path.Dir(p)).File(path.Base(p)+";1", []byte(storagetesting.Fixture[p]))
	}
	return b.Build()
}

func TestSessionOnMemoryImage(t *testing.T) {
	img := fixtureImage()

	suite := &storagetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) storage.Backend {
			s, err := Open(context.Background(), img.Opener(), Options{ReadChunkSize: 1000})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestSessionOnDiskImage(t *testing.T) {
	imagePath := isotest.Build(t, storagetesting.Fixture, isotest.Options{})
	factory := NewFactory(diskfs.NewOpener(sourcefs.NewOpener(imagePath), diskfs.Options{}), Options{})

	suite := &storagetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) storage.Backend {
			s, err := factory.NewSession(context.Background())
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestSessionOnDecodedImage(t *testing.T) {
	imagePath := isotest.Build(t, storagetesting.Fixture, isotest.Options{})
	factory := NewFactory(isoReader.NewOpener(sourcefs.NewOpener(imagePath), isoReader.Options{}), Options{})

	suite := &storagetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) storage.Backend {
			s, err := factory.NewSession(context.Background())
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

// caseSiblings differ only in case; Rock Ridge keeps them apart.
var caseSiblings = map[string]string{
	"docs/Readme.txt": "lower",
	"docs/README.TXT": "UPPER",
}

func TestRockRidgeCaseSiblings(t *testing.T) {
	imagePath := isotest.Build(t, caseSiblings, isotest.Options{RockRidge: true})

	readers := map[string]ReaderOpener{
		"iso9660": isoReader.NewOpener(sourcefs.NewOpener(imagePath), isoReader.Options{}),
		"diskfs":  diskfs.NewOpener(sourcefs.NewOpener(imagePath), diskfs.Options{}),
	}

	for name, open := range readers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := Open(ctx, open, Options{})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			assert.True(t, s.Features().RockRidge)

			entries, err := s.List(ctx, "/docs")
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			assert.ElementsMatch(t, []string{"Readme.txt", "README.TXT"}, names)

			for p, want := range map[string]string{
				"/docs/Readme.txt": "lower",
				"/docs/README.TXT": "UPPER",
			} {
				rc, err := s.Retrieve(ctx, p, 0)
				require.NoError(t, err, p)
				got, err := io.ReadAll(rc)
				require.NoError(t, err, p)
				require.NoError(t, rc.Close())
				assert.Equal(t, want, string(got), p)
			}

			_, err = s.Stat(ctx, "/docs/readme.TXT")
			assert.True(t, storage.IsNotFound(err), "rock ridge names match exactly: %v", err)
		})
	}
}

func TestSessionOnCachedDiskImage(t *testing.T) {
	imagePath := isotest.Build(t, storagetesting.Fixture, isotest.Options{})

	store, err := cachememory.New(cachememory.Config{MaxSizeBytes: 1 << 20, ExpectedBlockSize: 4096})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	open := cache.NewOpener(sourcefs.NewOpener(imagePath), store, cache.Config{BlockSize: 4096})
	factory := NewFactory(diskfs.NewOpener(open, diskfs.Options{}), Options{ReadChunkSize: 700})

	suite := &storagetesting.BackendTestSuite{
		NewBackend: func(t *testing.T) storage.Backend {
			s, err := factory.NewSession(context.Background())
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}
